package memory

import (
	"context"
	"fmt"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	s *Store
}

func (r *OrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[o.ID]; ok {
		return fmt.Errorf("insert order: duplicate id %s", o.ID)
	}
	for _, existing := range r.s.orders {
		if existing.OrderID == o.OrderID {
			return domain.ErrDuplicateOrderID
		}
		if o.ProviderTransactionID != nil && existing.ProviderTransactionID != nil &&
			*existing.ProviderTransactionID == *o.ProviderTransactionID {
			return fmt.Errorf("insert order: provider transaction id %s already mapped", *o.ProviderTransactionID)
		}
	}
	r.s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o, ok := r.s.orders[id]; ok {
		return cloneOrder(o), nil
	}
	return nil, nil
}

func (r *OrderRepo) GetByOrderID(_ context.Context, orderID string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.OrderID == orderID {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *OrderRepo) GetByProviderTransactionID(_ context.Context, providerTxID string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.ProviderTransactionID != nil && *o.ProviderTransactionID == providerTxID {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *OrderRepo) AttachQR(_ context.Context, id uuid.UUID, providerTxID, qrPayload string, expiresAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for oid, o := range r.s.orders {
		if oid != id && o.ProviderTransactionID != nil && *o.ProviderTransactionID == providerTxID {
			return false, fmt.Errorf("provider transaction id %s already mapped to another order", providerTxID)
		}
	}
	o, ok := r.s.orders[id]
	if !ok || o.Status != domain.OrderStatusPending || o.ProviderTransactionID != nil {
		return false, nil
	}
	o.ProviderTransactionID = &providerTxID
	o.QRPayload = &qrPayload
	o.ExpiresAt = expiresAt
	o.UpdatedAt = r.s.now().UTC()
	return true, nil
}

func (r *OrderRepo) ConditionalUpdateStatus(_ context.Context, q pgx.Tx, id uuid.UUID, expected, next domain.OrderStatus, completedAt *time.Time) (bool, error) {
	t, err := r.s.use(q)
	if err != nil {
		return false, err
	}
	if !domain.CanTransition(expected, next) {
		return false, fmt.Errorf("illegal order transition %s -> %s", expected, next)
	}
	o, ok := r.s.orders[id]
	if !ok || o.Status != expected {
		return false, nil
	}

	prev := cloneOrder(o)
	t.onRollback(func() { r.s.orders[id] = prev })

	o.Status = next
	o.CompletedAt = nil
	if next == domain.OrderStatusSuccess && completedAt != nil {
		at := *completedAt
		o.CompletedAt = &at
	}
	o.UpdatedAt = r.s.now().UTC()
	return true, nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	if o.ProviderTransactionID != nil {
		v := *o.ProviderTransactionID
		c.ProviderTransactionID = &v
	}
	if o.QRPayload != nil {
		v := *o.QRPayload
		c.QRPayload = &v
	}
	if o.Contact != nil {
		v := *o.Contact
		c.Contact = &v
	}
	if o.CompletedAt != nil {
		v := *o.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
