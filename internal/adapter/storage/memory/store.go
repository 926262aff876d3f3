// Package memory is an in-process implementation of the storage ports.
// Transactions are fully serialized: Begin takes the store lock and
// Commit or Rollback releases it. It backs the "memory" database driver
// and the settlement tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Fault names accepted by InjectFault.
const (
	FaultLedgerAppend     = "ledger.append"
	FaultWalletApplyDelta = "wallet.apply_delta"
)

// Store holds every table of the service in memory.
type Store struct {
	mu sync.Mutex

	orders          map[uuid.UUID]*domain.Order
	wallets         map[string]*domain.Wallet
	ledger          []domain.LedgerEntry
	processed       map[string]*domain.ProcessedTransaction
	inconsistencies map[uuid.UUID]*domain.LedgerInconsistency
	receipts        []domain.WebhookReceipt
	deliveries      []domain.NotificationDelivery

	faults map[string]error
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		orders:          make(map[uuid.UUID]*domain.Order),
		wallets:         make(map[string]*domain.Wallet),
		processed:       make(map[string]*domain.ProcessedTransaction),
		inconsistencies: make(map[uuid.UUID]*domain.LedgerInconsistency),
		faults:          make(map[string]error),
		now:             time.Now,
	}
}

// Begin implements ports.DBTransactor. It blocks until no other
// transaction is open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &tx{store: s}, nil
}

// InjectFault makes the next call of op fail with err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Name() string { return "memory" }

// takeFault must be called with the lock held.
func (s *Store) takeFault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

// Orders returns the order table as a ports.OrderRepository.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

func (s *Store) Wallets() *WalletRepo { return &WalletRepo{s: s} }

func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

func (s *Store) ProcessedTransactions() *ProcessedTxRepo { return &ProcessedTxRepo{s: s} }

func (s *Store) Inconsistencies() *InconsistencyRepo { return &InconsistencyRepo{s: s} }

func (s *Store) WebhookReceipts() *WebhookReceiptRepo { return &WebhookReceiptRepo{s: s} }

func (s *Store) NotificationLog() *NotificationLogRepo { return &NotificationLogRepo{s: s} }

// LedgerEntries returns a wallet owner's entries oldest first.
func (s *Store) LedgerEntries(ownerID string) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.ledger {
		if e.WalletOwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out
}

// Receipts returns a copy of the webhook audit trail.
func (s *Store) Receipts() []domain.WebhookReceipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.WebhookReceipt(nil), s.receipts...)
}

// Deliveries returns a copy of the notification delivery log.
func (s *Store) Deliveries() []domain.NotificationDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.NotificationDelivery(nil), s.deliveries...)
}

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// tx is a serialized transaction with an undo log. Nested transactions
// opened with Begin behave as savepoints. Only the methods below are
// implemented; the embedded pgx.Tx is nil.
type tx struct {
	pgx.Tx
	store  *Store
	parent *tx
	undo   []func()
	done   bool
}

// use returns the store transaction behind q, which must be open.
func (s *Store) use(q pgx.Tx) (*tx, error) {
	t, ok := q.(*tx)
	if !ok || t.store != s {
		return nil, errForeignTx
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

func (t *tx) Begin(ctx context.Context) (pgx.Tx, error) {
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return &tx{store: t.store, parent: t}, nil
}

func (t *tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if t.parent != nil {
		t.parent.undo = append(t.parent.undo, t.undo...)
		return nil
	}
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	if t.parent == nil {
		t.store.mu.Unlock()
	}
	return nil
}

func (t *tx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func notFound(entity, key string) error {
	return fmt.Errorf("%s not found: %s", entity, key)
}
