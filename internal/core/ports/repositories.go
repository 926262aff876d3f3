package ports

import (
	"context"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepository defines persistence operations for top-up orders.
// Getters return (nil, nil) when the order does not exist.
type OrderRepository interface {
	// Create inserts a PENDING order. Returns domain.ErrDuplicateOrderID on an order id collision.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	GetByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.Order, error)
	// AttachQR stores the provider's transaction id and QR payload on a PENDING order
	// that has none yet. Returns false if the guard did not match.
	AttachQR(ctx context.Context, id uuid.UUID, providerTxID, qrPayload string, expiresAt time.Time) (bool, error)
	// ConditionalUpdateStatus moves the order from expected to next only if it is
	// still in expected. Returns whether the update applied.
	ConditionalUpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, expected, next domain.OrderStatus, completedAt *time.Time) (bool, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error)
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error)
	// ApplyDelta adds delta to the balance and records the latest audit hash.
	ApplyDelta(ctx context.Context, tx pgx.Tx, ownerID string, delta int64, auditHash string) (int64, error)
}

// LedgerRepository defines the append-only wallet ledger.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ExistsForOrder(ctx context.Context, tx pgx.Tx, orderRef uuid.UUID, txType domain.LedgerTransactionType) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// ProcessedTransactionRepository is the durable processed-transactions log.
type ProcessedTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.ProcessedTransaction) error
	Get(ctx context.Context, providerTxID string) (*domain.ProcessedTransaction, error)
}

// InconsistencyRepository stores ledger inconsistencies awaiting reconciliation.
type InconsistencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, rec *domain.LedgerInconsistency) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerInconsistency, error)
	ListOpen(ctx context.Context, limit int) ([]domain.LedgerInconsistency, error)
	Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error)
}

// WebhookReceiptRepository persists the inbound webhook audit trail.
type WebhookReceiptRepository interface {
	Create(ctx context.Context, receipt *domain.WebhookReceipt) error
}

// NotificationLogRepository persists notification delivery attempts.
type NotificationLogRepository interface {
	Create(ctx context.Context, d *domain.NotificationDelivery) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
