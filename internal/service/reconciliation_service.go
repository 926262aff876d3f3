package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultReplayNote = "replayed by reconciliation"

// ReconciliationDeps groups the collaborators of the reconciliation service.
// Profile is optional; when set, a successful replay mirrors the points.
type ReconciliationDeps struct {
	Orders          ports.OrderRepository
	Wallets         ports.WalletRepository
	Ledger          ports.LedgerRepository
	Inconsistencies ports.InconsistencyRepository
	Transactor      ports.DBTransactor
	Profile         ports.ProfileMirror
}

// ReconciliationServiceImpl implements ports.ReconciliationService.
type ReconciliationServiceImpl struct {
	deps    ReconciliationDeps
	effects softEffects
	log     zerolog.Logger
	now     func() time.Time
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(deps ReconciliationDeps, effectTimeout time.Duration, log zerolog.Logger) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		deps:    deps,
		effects: newSoftEffects(effectTimeout, log),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListOpen returns unresolved inconsistencies, oldest first.
func (s *ReconciliationServiceImpl) ListOpen(ctx context.Context, limit int) ([]domain.LedgerInconsistency, error) {
	if limit <= 0 {
		limit = 100
	}
	recs, err := s.deps.Inconsistencies.ListOpen(ctx, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list inconsistencies: %w", err))
	}
	return recs, nil
}

// Replay applies the missing wallet credit for one inconsistency and resolves it.
// If the ledger already holds the order's TOPUP entry the row is only resolved.
func (s *ReconciliationServiceImpl) Replay(ctx context.Context, id uuid.UUID) (*ports.ReplayResult, error) {
	rec, err := s.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	log := s.log.With().
		Str("inconsistency_id", id.String()).
		Str("provider_tx_id", rec.ProviderTransactionID).
		Str("owner_id", rec.WalletOwnerID).
		Logger()

	order, err := s.deps.Orders.GetByID(ctx, rec.OrderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.Status != domain.OrderStatusSuccess {
		return nil, apperror.ErrLedgerInconsistency(fmt.Errorf("order %s is %s, refusing to credit", order.OrderID, order.Status))
	}

	now := s.now()
	tx, err := s.deps.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	result := &ports.ReplayResult{Inconsistency: *rec}

	exists, err := s.deps.Ledger.ExistsForOrder(ctx, tx, order.ID, domain.LedgerTypeTopup)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("check ledger: %w", err))
	}
	if !exists {
		balance, err := applyTopupCredit(ctx, tx, s.deps.Wallets, s.deps.Ledger, order, now)
		switch {
		case err == nil:
			result.Credited = true
			result.NewBalance = balance
		case errors.Is(err, domain.ErrAlreadyCredited):
		default:
			return nil, apperror.ErrLedgerInconsistency(err)
		}
	}
	if !result.Credited {
		w, err := s.deps.Wallets.GetOrCreateForUpdate(ctx, tx, order.WalletOwnerID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("read wallet: %w", err))
		}
		result.NewBalance = w.Balance
	}

	note := defaultReplayNote
	if !result.Credited {
		note = "ledger entry already present"
	}
	ok, err := s.deps.Inconsistencies.Resolve(ctx, tx, id, note, now)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("resolve inconsistency: %w", err))
	}
	if !ok {
		return nil, apperror.Validation("inconsistency is already resolved")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit: %w", err))
	}
	result.Inconsistency.Status = domain.InconsistencyResolved
	result.Inconsistency.ResolvedAt = &now
	result.Inconsistency.ResolutionNote = &note

	log.Info().
		Bool("credited", result.Credited).
		Int64("new_balance", result.NewBalance).
		Msg("inconsistency replayed")

	if result.Credited && s.deps.Profile != nil && order.PointsToCredit > 0 {
		s.effects.run(ctx, []softEffect{{
			name: "profile_mirror",
			run: func(ctx context.Context) error {
				return s.deps.Profile.MirrorPointsIncrement(ctx, order.WalletOwnerID, order.PointsToCredit)
			},
		}})
	}
	return result, nil
}

// Resolve closes an inconsistency without touching the ledger.
func (s *ReconciliationServiceImpl) Resolve(ctx context.Context, id uuid.UUID, note string) error {
	if note == "" {
		return apperror.Validation("resolution note is required")
	}
	if _, err := s.loadOpen(ctx, id); err != nil {
		return err
	}

	tx, err := s.deps.Transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ok, err := s.deps.Inconsistencies.Resolve(ctx, tx, id, note, s.now())
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("resolve inconsistency: %w", err))
	}
	if !ok {
		return apperror.Validation("inconsistency is already resolved")
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit: %w", err))
	}
	s.log.Info().Str("inconsistency_id", id.String()).Str("note", note).Msg("inconsistency resolved manually")
	return nil
}

func (s *ReconciliationServiceImpl) loadOpen(ctx context.Context, id uuid.UUID) (*domain.LedgerInconsistency, error) {
	rec, err := s.deps.Inconsistencies.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get inconsistency: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("inconsistency")
	}
	if rec.Status != domain.InconsistencyOpen {
		return nil, apperror.Validation("inconsistency is already resolved")
	}
	return rec, nil
}
