package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_id, wallet_owner_id, amount_minor, currency, points_to_credit, status,
		provider_transaction_id, qr_payload, expires_at, contact, created_at, updated_at, completed_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a new PENDING order.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	contact, err := marshalContact(o.Contact)
	if err != nil {
		return err
	}

	query := `INSERT INTO topup_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.pool.Exec(ctx, query,
		o.ID, o.OrderID, o.WalletOwnerID, o.AmountMinor, o.Currency, o.PointsToCredit, o.Status,
		o.ProviderTransactionID, o.QRPayload, o.ExpiresAt, contact, o.CreatedAt, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "topup_orders_order_id_key") {
			return domain.ErrDuplicateOrderID
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID fetches an order by its internal id.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM topup_orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByOrderID fetches an order by its human-readable order id.
func (r *OrderRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM topup_orders WHERE order_id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, orderID))
}

// GetByProviderTransactionID fetches the order a provider transaction id maps to.
func (r *OrderRepo) GetByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM topup_orders WHERE provider_transaction_id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, providerTxID))
}

// AttachQR records the provider's answer on a still-unissued PENDING order.
func (r *OrderRepo) AttachQR(ctx context.Context, id uuid.UUID, providerTxID, qrPayload string, expiresAt time.Time) (bool, error) {
	query := `UPDATE topup_orders
		SET provider_transaction_id = $1, qr_payload = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'PENDING' AND provider_transaction_id IS NULL`

	tag, err := r.pool.Exec(ctx, query, providerTxID, qrPayload, expiresAt, id)
	if err != nil {
		if isUniqueViolation(err, "topup_orders_provider_transaction_id_key") {
			return false, fmt.Errorf("provider transaction id %s already mapped to another order: %w", providerTxID, err)
		}
		return false, fmt.Errorf("attach qr: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConditionalUpdateStatus is the compare-and-set every order transition goes through.
// completedAt is only stored for SUCCESS.
func (r *OrderRepo) ConditionalUpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, expected, next domain.OrderStatus, completedAt *time.Time) (bool, error) {
	if !domain.CanTransition(expected, next) {
		return false, fmt.Errorf("illegal order transition %s -> %s", expected, next)
	}
	if next != domain.OrderStatusSuccess {
		completedAt = nil
	}

	query := `UPDATE topup_orders SET status = $1, completed_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, next, completedAt, id, expected)
	if err != nil {
		return false, fmt.Errorf("conditional update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	var contact []byte
	err := row.Scan(
		&o.ID, &o.OrderID, &o.WalletOwnerID, &o.AmountMinor, &o.Currency, &o.PointsToCredit, &o.Status,
		&o.ProviderTransactionID, &o.QRPayload, &o.ExpiresAt, &contact, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if len(contact) > 0 {
		o.Contact = &domain.ContactInfo{}
		if err := json.Unmarshal(contact, o.Contact); err != nil {
			return nil, fmt.Errorf("decode order contact: %w", err)
		}
	}
	return o, nil
}

func marshalContact(c *domain.ContactInfo) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode order contact: %w", err)
	}
	return b, nil
}
