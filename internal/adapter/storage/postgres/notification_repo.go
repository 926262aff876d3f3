package postgres

import (
	"context"
	"fmt"

	"loyalty-topup/internal/core/domain"
)

// NotificationLogRepo implements ports.NotificationLogRepository.
type NotificationLogRepo struct {
	pool Pool
}

// NewNotificationLogRepo creates a PostgreSQL-backed notification log.
func NewNotificationLogRepo(pool Pool) *NotificationLogRepo {
	return &NotificationLogRepo{pool: pool}
}

func (r *NotificationLogRepo) Create(ctx context.Context, d *domain.NotificationDelivery) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_deliveries (id, order_id, recipient_ref, kind, status, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.OrderID, d.RecipientRef, d.Kind, d.Status, d.LastError, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification delivery: %w", err)
	}
	return nil
}
