package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func testReceipt() *domain.WebhookReceipt {
	return &domain.WebhookReceipt{
		ID:                    uuid.New(),
		ProviderTransactionID: "ptx-1",
		Event:                 "payment.success",
		HTTPStatus:            200,
		Outcome:               string(domain.OutcomeSettled),
		ClientIP:              "127.0.0.1",
		CreatedAt:             time.Now(),
	}
}

func TestAuditService_RecordReceipt_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockWebhookReceiptRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, r *domain.WebhookReceipt) error {
			assert.NoError(t, ctx.Err(), "write context must survive the request")
			assert.Equal(t, "ptx-1", r.ProviderTransactionID)
			close(done)
			return nil
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	svc.RecordReceipt(ctx, testReceipt())
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receipt not persisted in time")
	}
}

func TestAuditService_RecordReceipt_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockWebhookReceiptRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.WebhookReceipt) error {
			defer close(done)
			return errors.New("disk full")
		},
	)

	svc.RecordReceipt(context.Background(), testReceipt())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("repo not called")
	}
}

func TestAuditService_RecordReceipt_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	// Should not panic
	svc.RecordReceipt(context.Background(), testReceipt())
	time.Sleep(50 * time.Millisecond) // let goroutine run
}
