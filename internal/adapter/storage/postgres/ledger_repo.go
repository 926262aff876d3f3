package postgres

import (
	"context"
	"fmt"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. Rows are never updated or deleted.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append validates and inserts an entry within a database transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO wallet_ledger (id, wallet_owner_id, order_ref, transaction_type, points_change,
		balance_before, balance_after, description, entry_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletOwnerID, e.OrderRef, e.TransactionType, e.PointsChange,
		e.BalanceBefore, e.BalanceAfter, e.Description, e.EntryHash, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "wallet_ledger_topup_once") {
			return fmt.Errorf("append ledger entry: %w", domain.ErrAlreadyCredited)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ExistsForOrder reports whether the order already has an entry of txType.
func (r *LedgerRepo) ExistsForOrder(ctx context.Context, tx pgx.Tx, orderRef uuid.UUID, txType domain.LedgerTransactionType) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM wallet_ledger WHERE order_ref = $1 AND transaction_type = $2)`

	var exists bool
	if err := tx.QueryRow(ctx, query, orderRef, txType).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ledger entry exists: %w", err)
	}
	return exists, nil
}

// ListByOwner returns one page of an owner's ledger, newest first, and the total count.
func (r *LedgerRepo) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_ledger WHERE wallet_owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT id, wallet_owner_id, order_ref, transaction_type, points_change,
		balance_before, balance_after, description, entry_hash, created_at
		FROM wallet_ledger WHERE wallet_owner_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.WalletOwnerID, &e.OrderRef, &e.TransactionType, &e.PointsChange,
			&e.BalanceBefore, &e.BalanceAfter, &e.Description, &e.EntryHash, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, total, nil
}
