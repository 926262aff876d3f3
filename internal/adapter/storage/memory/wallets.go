package memory

import (
	"context"
	"fmt"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

func (r *WalletRepo) GetOrCreate(_ context.Context, ownerID string) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, _ := r.s.ensureWallet(ownerID)
	return cloneWallet(w), nil
}

// GetOrCreateForUpdate needs no row lock; the transaction already holds the store.
func (r *WalletRepo) GetOrCreateForUpdate(_ context.Context, q pgx.Tx, ownerID string) (*domain.Wallet, error) {
	t, err := r.s.use(q)
	if err != nil {
		return nil, err
	}
	w, created := r.s.ensureWallet(ownerID)
	if created {
		t.onRollback(func() { delete(r.s.wallets, ownerID) })
	}
	return cloneWallet(w), nil
}

func (r *WalletRepo) ApplyDelta(_ context.Context, q pgx.Tx, ownerID string, delta int64, auditHash string) (int64, error) {
	t, err := r.s.use(q)
	if err != nil {
		return 0, err
	}
	if err := r.s.takeFault(FaultWalletApplyDelta); err != nil {
		return 0, err
	}
	w, ok := r.s.wallets[ownerID]
	if !ok {
		return 0, notFound("wallet", ownerID)
	}
	if w.Balance+delta < 0 {
		return 0, fmt.Errorf("apply wallet delta: balance would become negative")
	}

	prev := cloneWallet(w)
	t.onRollback(func() { r.s.wallets[ownerID] = prev })

	w.Balance += delta
	h := auditHash
	w.LastAuditHash = &h
	w.UpdatedAt = r.s.now().UTC()
	return w.Balance, nil
}

// ensureWallet must be called with the lock held.
func (s *Store) ensureWallet(ownerID string) (*domain.Wallet, bool) {
	if w, ok := s.wallets[ownerID]; ok {
		return w, false
	}
	now := s.now().UTC()
	w := &domain.Wallet{OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	s.wallets[ownerID] = w
	return w, true
}

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	if w.LastAuditHash != nil {
		v := *w.LastAuditHash
		c.LastAuditHash = &v
	}
	return &c
}

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	s *Store
}

func (r *LedgerRepo) Append(_ context.Context, q pgx.Tx, e *domain.LedgerEntry) error {
	t, err := r.s.use(q)
	if err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := r.s.takeFault(FaultLedgerAppend); err != nil {
		return err
	}
	if e.TransactionType == domain.LedgerTypeTopup && e.OrderRef != nil && r.s.hasEntry(*e.OrderRef, e.TransactionType) {
		return fmt.Errorf("append ledger entry: %w", domain.ErrAlreadyCredited)
	}

	n := len(r.s.ledger)
	t.onRollback(func() { r.s.ledger = r.s.ledger[:n] })
	r.s.ledger = append(r.s.ledger, *e)
	return nil
}

func (r *LedgerRepo) ExistsForOrder(_ context.Context, q pgx.Tx, orderRef uuid.UUID, txType domain.LedgerTransactionType) (bool, error) {
	if _, err := r.s.use(q); err != nil {
		return false, err
	}
	return r.s.hasEntry(orderRef, txType), nil
}

// ListByOwner returns one page of an owner's ledger, newest first.
func (r *LedgerRepo) ListByOwner(_ context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var all []domain.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		if r.s.ledger[i].WalletOwnerID == ownerID {
			all = append(all, r.s.ledger[i])
		}
	}

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start < 0 || start >= len(all) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *Store) hasEntry(orderRef uuid.UUID, txType domain.LedgerTransactionType) bool {
	for _, e := range s.ledger {
		if e.OrderRef != nil && *e.OrderRef == orderRef && e.TransactionType == txType {
			return true
		}
	}
	return false
}
