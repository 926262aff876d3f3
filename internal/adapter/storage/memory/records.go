package memory

import (
	"context"
	"sort"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProcessedTxRepo implements ports.ProcessedTransactionRepository.
type ProcessedTxRepo struct {
	s *Store
}

// Create keeps the first record for a provider transaction id.
func (r *ProcessedTxRepo) Create(_ context.Context, q pgx.Tx, p *domain.ProcessedTransaction) error {
	t, err := r.s.use(q)
	if err != nil {
		return err
	}
	if _, ok := r.s.processed[p.ProviderTransactionID]; ok {
		return nil
	}
	c := *p
	r.s.processed[p.ProviderTransactionID] = &c
	t.onRollback(func() { delete(r.s.processed, p.ProviderTransactionID) })
	return nil
}

func (r *ProcessedTxRepo) Get(_ context.Context, providerTxID string) (*domain.ProcessedTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.processed[providerTxID]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

// InconsistencyRepo implements ports.InconsistencyRepository.
type InconsistencyRepo struct {
	s *Store
}

func (r *InconsistencyRepo) Create(_ context.Context, q pgx.Tx, rec *domain.LedgerInconsistency) error {
	t, err := r.s.use(q)
	if err != nil {
		return err
	}
	c := *rec
	r.s.inconsistencies[rec.ID] = &c
	t.onRollback(func() { delete(r.s.inconsistencies, rec.ID) })
	return nil
}

func (r *InconsistencyRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.LedgerInconsistency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec, ok := r.s.inconsistencies[id]; ok {
		c := *rec
		return &c, nil
	}
	return nil, nil
}

// ListOpen returns open records oldest first.
func (r *InconsistencyRepo) ListOpen(_ context.Context, limit int) ([]domain.LedgerInconsistency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.LedgerInconsistency
	for _, rec := range r.s.inconsistencies {
		if rec.Status == domain.InconsistencyOpen {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InconsistencyRepo) Resolve(_ context.Context, q pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error) {
	t, err := r.s.use(q)
	if err != nil {
		return false, err
	}
	rec, ok := r.s.inconsistencies[id]
	if !ok || rec.Status != domain.InconsistencyOpen {
		return false, nil
	}
	prev := *rec
	t.onRollback(func() { *rec = prev })

	rec.Status = domain.InconsistencyResolved
	rec.ResolvedAt = &at
	rec.ResolutionNote = &note
	return true, nil
}

// WebhookReceiptRepo implements ports.WebhookReceiptRepository.
type WebhookReceiptRepo struct {
	s *Store
}

func (r *WebhookReceiptRepo) Create(_ context.Context, rec *domain.WebhookReceipt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.receipts = append(r.s.receipts, *rec)
	return nil
}

// NotificationLogRepo implements ports.NotificationLogRepository.
type NotificationLogRepo struct {
	s *Store
}

func (r *NotificationLogRepo) Create(_ context.Context, d *domain.NotificationDelivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deliveries = append(r.s.deliveries, *d)
	return nil
}
