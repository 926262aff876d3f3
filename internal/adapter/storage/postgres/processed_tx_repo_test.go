package postgres

import (
	"context"
	"testing"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessedTxRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProcessedTxRepo(mock)
	p := &domain.ProcessedTransaction{
		ProviderTransactionID: "ptx-1",
		OrderID:               "TOPUP-20260101-AB12C",
		Outcome:               domain.OrderStatusSuccess,
		Payload:               []byte(`{"event":"payment.success"}`),
		CreatedAt:             time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO processed_transactions .+ ON CONFLICT").
		WithArgs(p.ProviderTransactionID, p.OrderID, p.Outcome, p.Payload, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), dbTx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedTxRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProcessedTxRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT provider_transaction_id").
		WithArgs("ptx-1").
		WillReturnRows(pgxmock.NewRows([]string{"provider_transaction_id", "order_id", "outcome", "payload", "created_at"}).
			AddRow("ptx-1", "TOPUP-20260101-AB12C", domain.OrderStatusSuccess, []byte(`{}`), now))

	got, err := repo.Get(context.Background(), "ptx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.OrderStatusSuccess, got.Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedTxRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProcessedTxRepo(mock)

	mock.ExpectQuery("SELECT provider_transaction_id").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
