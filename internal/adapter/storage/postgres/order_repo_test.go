package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestOrder() *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		ID:             uuid.New(),
		OrderID:        "TOPUP-20260101-AB12C",
		WalletOwnerID:  "member-1",
		AmountMinor:    10000,
		Currency:       "THB",
		PointsToCredit: 100,
		Status:         domain.OrderStatusPending,
		ExpiresAt:      now.Add(15 * time.Minute),
		Contact:        &domain.ContactInfo{Phone: "0812345678"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func orderColumnNames() []string {
	return []string{"id", "order_id", "wallet_owner_id", "amount_minor", "currency", "points_to_credit", "status",
		"provider_transaction_id", "qr_payload", "expires_at", "contact", "created_at", "updated_at", "completed_at"}
}

func orderRow(o *domain.Order, contact []byte) *pgxmock.Rows {
	return pgxmock.NewRows(orderColumnNames()).AddRow(
		o.ID, o.OrderID, o.WalletOwnerID, o.AmountMinor, o.Currency, o.PointsToCredit, o.Status,
		o.ProviderTransactionID, o.QRPayload, o.ExpiresAt, contact, o.CreatedAt, o.UpdatedAt, o.CompletedAt,
	)
}

func TestOrderRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder()

	mock.ExpectExec("INSERT INTO topup_orders").
		WithArgs(
			o.ID, o.OrderID, o.WalletOwnerID, o.AmountMinor, o.Currency, o.PointsToCredit, o.Status,
			o.ProviderTransactionID, o.QRPayload, o.ExpiresAt, []byte(`{"phone":"0812345678"}`), o.CreatedAt, o.UpdatedAt, o.CompletedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_Create_DuplicateOrderID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder()
	o.Contact = nil

	mock.ExpectExec("INSERT INTO topup_orders").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "topup_orders_order_id_key"})

	err = repo.Create(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderID)
}

func TestOrderRepo_GetByProviderTransactionID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder()
	o.ProviderTransactionID = strPtr("ptx-1")
	o.QRPayload = strPtr("000201010212...")

	mock.ExpectQuery("SELECT .+ FROM topup_orders WHERE provider_transaction_id").
		WithArgs("ptx-1").
		WillReturnRows(orderRow(o, []byte(`{"phone":"0812345678"}`)))

	got, err := repo.GetByProviderTransactionID(context.Background(), "ptx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, "ptx-1", *got.ProviderTransactionID)
	require.NotNil(t, got.Contact)
	assert.Equal(t, "0812345678", got.Contact.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByOrderID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM topup_orders WHERE order_id").
		WithArgs("TOPUP-20260101-ZZZZZ").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByOrderID(context.Background(), "TOPUP-20260101-ZZZZZ")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestOrderRepo_GetByID_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM topup_orders WHERE id").
		WithArgs(id).
		WillReturnError(errors.New("connection reset"))

	got, err := repo.GetByID(context.Background(), id)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestOrderRepo_AttachQR(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	id := uuid.New()
	exp := time.Now().Add(15 * time.Minute)

	mock.ExpectExec("UPDATE topup_orders").
		WithArgs("ptx-1", "qr-data", exp, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE topup_orders").
		WithArgs("ptx-2", "qr-data", exp, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.AttachQR(context.Background(), id, "ptx-1", "qr-data", exp)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AttachQR(context.Background(), id, "ptx-2", "qr-data", exp)
	require.NoError(t, err)
	assert.False(t, ok, "already issued order must not be overwritten")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_ConditionalUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE topup_orders SET status").
		WithArgs(domain.OrderStatusSuccess, &now, id, domain.OrderStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE topup_orders SET status").
		WithArgs(domain.OrderStatusSuccess, &now, id, domain.OrderStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	won, err := repo.ConditionalUpdateStatus(context.Background(), dbTx, id, domain.OrderStatusPending, domain.OrderStatusSuccess, &now)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.ConditionalUpdateStatus(context.Background(), dbTx, id, domain.OrderStatusPending, domain.OrderStatusSuccess, &now)
	require.NoError(t, err)
	assert.False(t, won, "second caller observes zero rows affected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_ConditionalUpdateStatus_FailedClearsCompletedAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE topup_orders SET status").
		WithArgs(domain.OrderStatusFailed, (*time.Time)(nil), id, domain.OrderStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	won, err := repo.ConditionalUpdateStatus(context.Background(), dbTx, id, domain.OrderStatusPending, domain.OrderStatusFailed, &now)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestOrderRepo_ConditionalUpdateStatus_IllegalTransition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	mock.ExpectBegin()
	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.ConditionalUpdateStatus(context.Background(), dbTx, uuid.New(), domain.OrderStatusSuccess, domain.OrderStatusFailed, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
