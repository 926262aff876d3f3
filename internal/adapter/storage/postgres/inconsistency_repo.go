package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const inconsistencyColumns = `id, order_id, provider_transaction_id, wallet_owner_id, points, reason, status,
		created_at, resolved_at, resolution_note`

// InconsistencyRepo implements ports.InconsistencyRepository.
type InconsistencyRepo struct {
	pool Pool
}

// NewInconsistencyRepo creates a new InconsistencyRepo.
func NewInconsistencyRepo(pool Pool) *InconsistencyRepo {
	return &InconsistencyRepo{pool: pool}
}

// Create queues an inconsistency in the same transaction as the order transition.
func (r *InconsistencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.LedgerInconsistency) error {
	query := `INSERT INTO ledger_inconsistencies (` + inconsistencyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		rec.ID, rec.OrderID, rec.ProviderTransactionID, rec.WalletOwnerID, rec.Points, rec.Reason, rec.Status,
		rec.CreatedAt, rec.ResolvedAt, rec.ResolutionNote,
	)
	if err != nil {
		return fmt.Errorf("insert ledger inconsistency: %w", err)
	}
	return nil
}

// GetByID fetches one inconsistency.
func (r *InconsistencyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerInconsistency, error) {
	query := `SELECT ` + inconsistencyColumns + ` FROM ledger_inconsistencies WHERE id = $1`

	rec, err := scanInconsistency(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger inconsistency: %w", err)
	}
	return rec, nil
}

// ListOpen returns the oldest open inconsistencies first.
func (r *InconsistencyRepo) ListOpen(ctx context.Context, limit int) ([]domain.LedgerInconsistency, error) {
	query := `SELECT ` + inconsistencyColumns + ` FROM ledger_inconsistencies
		WHERE status = 'OPEN' ORDER BY created_at ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list open inconsistencies: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerInconsistency
	for rows.Next() {
		rec, err := scanInconsistency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inconsistency row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Resolve marks an OPEN inconsistency as RESOLVED. Returns false if it was not open.
func (r *InconsistencyRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error) {
	query := `UPDATE ledger_inconsistencies SET status = 'RESOLVED', resolved_at = $1, resolution_note = $2
		WHERE id = $3 AND status = 'OPEN'`

	tag, err := tx.Exec(ctx, query, at, note, id)
	if err != nil {
		return false, fmt.Errorf("resolve inconsistency: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanInconsistency(row pgx.Row) (*domain.LedgerInconsistency, error) {
	rec := &domain.LedgerInconsistency{}
	err := row.Scan(
		&rec.ID, &rec.OrderID, &rec.ProviderTransactionID, &rec.WalletOwnerID, &rec.Points, &rec.Reason, &rec.Status,
		&rec.CreatedAt, &rec.ResolvedAt, &rec.ResolutionNote,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
