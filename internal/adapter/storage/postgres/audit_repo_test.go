package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookReceiptRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookReceiptRepo(mock)
	rec := &domain.WebhookReceipt{
		ID:                    uuid.New(),
		ProviderTransactionID: "ptx-1",
		Event:                 "payment.success",
		HTTPStatus:            200,
		Outcome:               string(domain.OutcomeSettled),
		RawPayload:            []byte(`{}`),
		ClientIP:              "10.0.0.1",
		CreatedAt:             time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO webhook_receipts").
		WithArgs(rec.ID, rec.ProviderTransactionID, rec.Event, rec.HTTPStatus, rec.Outcome,
			rec.Reason, rec.RawPayload, rec.ClientIP, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationLogRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationLogRepo(mock)
	msg := "gateway timeout"
	d := &domain.NotificationDelivery{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		RecipientRef: "member-1",
		Kind:         domain.NotificationTopupSucceeded,
		Status:       domain.DeliveryStatusFailed,
		LastError:    &msg,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO notification_deliveries").
		WithArgs(d.ID, d.OrderID, d.RecipientRef, d.Kind, d.Status, d.LastError, d.CreatedAt).
		WillReturnError(errors.New("disk full"))

	err = repo.Create(context.Background(), d)
	assert.ErrorContains(t, err, "insert notification delivery")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := NewHealthCheck(mock)
	mock.ExpectQuery("SELECT 1").WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	assert.NoError(t, h.Ping(context.Background()))
	assert.Equal(t, "postgresql", h.Name())
}
