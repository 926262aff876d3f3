package postgres

import (
	"context"
	"errors"
	"fmt"

	"loyalty-topup/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const ensureWalletQuery = `INSERT INTO wallets (owner_id, balance, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW()) ON CONFLICT (owner_id) DO NOTHING`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetOrCreate returns the owner's wallet, creating an empty one on first reference.
func (r *WalletRepo) GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if _, err := r.pool.Exec(ctx, ensureWalletQuery, ownerID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	query := `SELECT owner_id, balance, last_audit_hash, created_at, updated_at FROM wallets WHERE owner_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, ownerID))
}

// GetOrCreateForUpdate is GetOrCreate with a row lock held until tx ends.
// This MUST be called within a transaction.
func (r *WalletRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error) {
	if _, err := tx.Exec(ctx, ensureWalletQuery, ownerID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	query := `SELECT owner_id, balance, last_audit_hash, created_at, updated_at
		FROM wallets WHERE owner_id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, ownerID))
}

// ApplyDelta adds delta to the balance and returns the new balance.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, ownerID string, delta int64, auditHash string) (int64, error) {
	query := `UPDATE wallets SET balance = balance + $1, last_audit_hash = $2, updated_at = NOW()
		WHERE owner_id = $3 RETURNING balance`

	var balance int64
	if err := tx.QueryRow(ctx, query, delta, auditHash, ownerID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("wallet not found: %s", ownerID)
		}
		return 0, fmt.Errorf("apply wallet delta: %w", err)
	}
	return balance, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	if err := row.Scan(&w.OwnerID, &w.Balance, &w.LastAuditHash, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
