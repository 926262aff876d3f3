package postgres

import (
	"context"
	"fmt"

	"loyalty-topup/internal/core/domain"
)

// WebhookReceiptRepo implements ports.WebhookReceiptRepository.
type WebhookReceiptRepo struct {
	pool Pool
}

// NewWebhookReceiptRepo creates a PostgreSQL-backed receipt store.
func NewWebhookReceiptRepo(pool Pool) *WebhookReceiptRepo {
	return &WebhookReceiptRepo{pool: pool}
}

func (r *WebhookReceiptRepo) Create(ctx context.Context, rec *domain.WebhookReceipt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_receipts (id, provider_transaction_id, event, http_status, outcome, reason, raw_payload, client_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ProviderTransactionID, rec.Event, rec.HTTPStatus, rec.Outcome,
		rec.Reason, rec.RawPayload, rec.ClientIP, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook receipt: %w", err)
	}
	return nil
}
