package postgres

import (
	"context"
	"errors"
	"fmt"

	"loyalty-topup/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ProcessedTxRepo implements ports.ProcessedTransactionRepository.
type ProcessedTxRepo struct {
	pool Pool
}

// NewProcessedTxRepo creates a new ProcessedTxRepo.
func NewProcessedTxRepo(pool Pool) *ProcessedTxRepo {
	return &ProcessedTxRepo{pool: pool}
}

// Create records a provider transaction's final outcome within a database transaction.
// A row that already exists is left untouched.
func (r *ProcessedTxRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.ProcessedTransaction) error {
	query := `INSERT INTO processed_transactions (provider_transaction_id, order_id, outcome, payload, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (provider_transaction_id) DO NOTHING`

	_, err := tx.Exec(ctx, query, p.ProviderTransactionID, p.OrderID, p.Outcome, p.Payload, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert processed transaction: %w", err)
	}
	return nil
}

// Get fetches the processed record for a provider transaction id.
func (r *ProcessedTxRepo) Get(ctx context.Context, providerTxID string) (*domain.ProcessedTransaction, error) {
	query := `SELECT provider_transaction_id, order_id, outcome, payload, created_at
		FROM processed_transactions WHERE provider_transaction_id = $1`

	p := &domain.ProcessedTransaction{}
	err := r.pool.QueryRow(ctx, query, providerTxID).Scan(&p.ProviderTransactionID, &p.OrderID, &p.Outcome, &p.Payload, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get processed transaction: %w", err)
	}
	return p, nil
}
