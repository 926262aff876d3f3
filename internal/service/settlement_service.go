package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SettlementDeps groups the collaborators of the settlement engine.
// NotificationLog and Publisher are optional.
type SettlementDeps struct {
	Orders          ports.OrderRepository
	Wallets         ports.WalletRepository
	Ledger          ports.LedgerRepository
	Processed       ports.ProcessedTransactionRepository
	Inconsistencies ports.InconsistencyRepository
	Transactor      ports.DBTransactor
	Guard           ports.IdempotencyGuard
	Profile         ports.ProfileMirror
	Notifier        ports.Notifier
	NotificationLog ports.NotificationLogRepository
	Publisher       ports.EventPublisher
}

// SettlementOptions holds the engine's business settings.
type SettlementOptions struct {
	AmountToleranceMinor int64
	CurrencyExponent     int32
	SoftEffectTimeout    time.Duration
}

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	deps    SettlementDeps
	opts    SettlementOptions
	effects softEffects
	log     zerolog.Logger
	now     func() time.Time
}

// NewSettlementService creates a new settlement engine.
func NewSettlementService(deps SettlementDeps, opts SettlementOptions, log zerolog.Logger) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		deps:    deps,
		opts:    opts,
		effects: newSoftEffects(opts.SoftEffectTimeout, log),
		log:     log,
		now:     time.Now,
	}
}

// Settle applies a verified webhook to its order.
func (s *SettlementServiceImpl) Settle(ctx context.Context, req ports.SettleRequest) (*domain.SettlementResult, error) {
	log := s.log.With().
		Str("provider_tx_id", req.ProviderTransactionID).
		Str("event", string(req.Event)).
		Logger()

	switch req.Event {
	case domain.WebhookEventPaymentSuccess:
		return s.settleSuccess(ctx, req, log)
	case domain.WebhookEventPaymentFailed:
		return s.settleFailure(ctx, req, log)
	case domain.WebhookEventPaymentRefunded:
		log.Warn().Int64("amount_minor", req.AmountMinor).Msg("refund event acknowledged, no wallet adjustment made")
		return &domain.SettlementResult{Outcome: domain.OutcomeIgnored}, nil
	default:
		return nil, apperror.ErrInvalidPayload().WithDetail(fmt.Sprintf("unsupported event %q", req.Event))
	}
}

func (s *SettlementServiceImpl) settleSuccess(ctx context.Context, req ports.SettleRequest, log zerolog.Logger) (*domain.SettlementResult, error) {
	// Advisory fast path
	guard, err := s.deps.Guard.CheckAndReserve(ctx, req.ProviderTransactionID)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency guard unavailable, continuing")
	} else if guard.Duplicate && guard.PriorStatus == domain.OrderStatusSuccess {
		log.Info().Str("source", guard.Source).Str("outcome", string(domain.OutcomeAlreadySettled)).Msg("duplicate delivery")
		return &domain.SettlementResult{Outcome: domain.OutcomeAlreadySettled}, nil
	}

	order, err := s.loadOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("order_id", order.OrderID).Str("owner_id", order.WalletOwnerID).Logger()

	switch order.Status {
	case domain.OrderStatusSuccess:
		return &domain.SettlementResult{Outcome: domain.OutcomeAlreadySettled, Order: order}, nil
	case domain.OrderStatusFailed, domain.OrderStatusExpired:
		log.Warn().Str("status", string(order.Status)).Msg("success webhook for terminal order rejected")
		return nil, apperror.ErrOrderRejected().WithDetail("order is " + string(order.Status))
	}

	if !s.amountMatches(order, req) {
		log.Warn().
			Int64("expected_minor", order.AmountMinor).
			Int64("received_minor", req.AmountMinor).
			Str("expected_currency", order.Currency).
			Str("received_currency", req.Currency).
			Msg("amount mismatch, order left pending")
		return nil, apperror.ErrAmountMismatch().WithDetail(fmt.Sprintf("expected %s %s, received %s %s",
			domain.FormatMinor(order.AmountMinor, s.opts.CurrencyExponent), order.Currency,
			domain.FormatMinor(req.AmountMinor, s.opts.CurrencyExponent), req.Currency))
	}

	now := s.now().UTC()

	dbTx, err := s.deps.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	applied, err := s.deps.Orders.ConditionalUpdateStatus(ctx, dbTx, order.ID, domain.OrderStatusPending, domain.OrderStatusSuccess, &now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transition order: %w", err))
	}
	if !applied {
		_ = dbTx.Rollback(ctx)
		return s.afterLostRace(ctx, order.ID, domain.WebhookEventPaymentSuccess, log)
	}
	order.Status = domain.OrderStatusSuccess
	order.CompletedAt = &now

	result := &domain.SettlementResult{Outcome: domain.OutcomeSettled, Order: order}

	newBalance, creditErr := applyTopupCredit(ctx, dbTx, s.deps.Wallets, s.deps.Ledger, order, now)
	switch {
	case creditErr == nil:
		result.CreditApplied = true
		result.NewBalance = newBalance
	case errors.Is(creditErr, domain.ErrAlreadyCredited):
		log.Warn().Msg("ledger already holds the top-up entry for this order")
	default:
		result.Inconsistency = true
		log.Error().Err(creditErr).Bool("inconsistency", true).Int64("points", order.PointsToCredit).
			Msg("order settled but wallet credit failed")
		rec := &domain.LedgerInconsistency{
			ID:                    uuid.New(),
			OrderID:               order.ID,
			ProviderTransactionID: req.ProviderTransactionID,
			WalletOwnerID:         order.WalletOwnerID,
			Points:                order.PointsToCredit,
			Reason:                creditErr.Error(),
			Status:                domain.InconsistencyOpen,
			CreatedAt:             now,
		}
		if err := s.deps.Inconsistencies.Create(ctx, dbTx, rec); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record inconsistency: %w", err))
		}
	}

	if err := s.recordProcessed(ctx, dbTx, req, order, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	log.Info().
		Str("outcome", string(result.Outcome)).
		Int64("points", order.PointsToCredit).
		Int64("new_balance", result.NewBalance).
		Bool("credit_applied", result.CreditApplied).
		Msg("top-up settled")

	result.Effects = s.effects.run(ctx, s.successEffects(req, result))
	return result, nil
}

func (s *SettlementServiceImpl) settleFailure(ctx context.Context, req ports.SettleRequest, log zerolog.Logger) (*domain.SettlementResult, error) {
	guard, err := s.deps.Guard.CheckAndReserve(ctx, req.ProviderTransactionID)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency guard unavailable, continuing")
	} else if guard.Duplicate && guard.PriorStatus == domain.OrderStatusFailed {
		return &domain.SettlementResult{Outcome: domain.OutcomeAlreadyFailed}, nil
	}

	order, err := s.loadOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("order_id", order.OrderID).Str("owner_id", order.WalletOwnerID).Logger()

	if order.IsTerminal() {
		return s.terminalFailureOutcome(order, log), nil
	}

	dbTx, err := s.deps.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now().UTC()
	applied, err := s.deps.Orders.ConditionalUpdateStatus(ctx, dbTx, order.ID, domain.OrderStatusPending, domain.OrderStatusFailed, nil)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transition order: %w", err))
	}
	if !applied {
		_ = dbTx.Rollback(ctx)
		return s.afterLostRace(ctx, order.ID, domain.WebhookEventPaymentFailed, log)
	}
	order.Status = domain.OrderStatusFailed

	if err := s.recordProcessed(ctx, dbTx, req, order, now); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	log.Info().Str("outcome", string(domain.OutcomeMarkedFailed)).Msg("top-up marked failed")

	result := &domain.SettlementResult{Outcome: domain.OutcomeMarkedFailed, Order: order}
	result.Effects = s.effects.run(ctx, []softEffect{
		s.rememberEffect(req.ProviderTransactionID, domain.OrderStatusFailed),
		s.notifyEffect(order, domain.NotificationTopupFailed, map[string]string{
			"order_id": order.OrderID,
			"amount":   domain.FormatMinor(order.AmountMinor, s.opts.CurrencyExponent),
			"currency": order.Currency,
		}),
	})
	return result, nil
}

// terminalFailureOutcome maps a failure event on an already-final order.
// SUCCESS is never overwritten.
func (s *SettlementServiceImpl) terminalFailureOutcome(order *domain.Order, log zerolog.Logger) *domain.SettlementResult {
	if order.Status == domain.OrderStatusFailed {
		return &domain.SettlementResult{Outcome: domain.OutcomeAlreadyFailed, Order: order}
	}
	log.Warn().Str("status", string(order.Status)).Msg("failure webhook for final order ignored")
	return &domain.SettlementResult{Outcome: domain.OutcomeIgnored, Order: order}
}

func (s *SettlementServiceImpl) loadOrder(ctx context.Context, req ports.SettleRequest) (*domain.Order, error) {
	order, err := s.deps.Orders.GetByProviderTransactionID(ctx, req.ProviderTransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound()
	}
	if req.OrderID != "" && req.OrderID != order.OrderID {
		s.log.Warn().
			Str("provider_tx_id", req.ProviderTransactionID).
			Str("order_id", order.OrderID).
			Str("metadata_order_id", req.OrderID).
			Msg("webhook metadata names a different order")
	}
	return order, nil
}

// afterLostRace re-reads an order whose conditional update did not apply.
func (s *SettlementServiceImpl) afterLostRace(ctx context.Context, id uuid.UUID, event domain.WebhookEvent, log zerolog.Logger) (*domain.SettlementResult, error) {
	current, err := s.deps.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("re-read order: %w", err))
	}
	if current == nil || !current.IsTerminal() {
		return nil, apperror.InternalError(fmt.Errorf("order %s not updated and not final", id))
	}
	log.Info().Str("status", string(current.Status)).Msg("lost settlement race")

	if event == domain.WebhookEventPaymentFailed {
		return s.terminalFailureOutcome(current, log), nil
	}
	if current.Status == domain.OrderStatusSuccess {
		return &domain.SettlementResult{Outcome: domain.OutcomeAlreadySettled, Order: current}, nil
	}
	return nil, apperror.ErrOrderRejected().WithDetail("order is " + string(current.Status))
}

func (s *SettlementServiceImpl) amountMatches(order *domain.Order, req ports.SettleRequest) bool {
	if !strings.EqualFold(order.Currency, req.Currency) {
		return false
	}
	diff := req.AmountMinor - order.AmountMinor
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.opts.AmountToleranceMinor
}

func (s *SettlementServiceImpl) recordProcessed(ctx context.Context, tx pgx.Tx, req ports.SettleRequest, order *domain.Order, now time.Time) error {
	rec := &domain.ProcessedTransaction{
		ProviderTransactionID: req.ProviderTransactionID,
		OrderID:               order.OrderID,
		Outcome:               order.Status,
		Payload:               req.RawPayload,
		CreatedAt:             now,
	}
	if err := s.deps.Processed.Create(ctx, tx, rec); err != nil {
		return apperror.InternalError(fmt.Errorf("record processed transaction: %w", err))
	}
	return nil
}

func (s *SettlementServiceImpl) successEffects(req ports.SettleRequest, res *domain.SettlementResult) []softEffect {
	order := res.Order
	return []softEffect{
		s.rememberEffect(req.ProviderTransactionID, domain.OrderStatusSuccess),
		{
			name: "profile_mirror",
			run: func(ctx context.Context) error {
				if !res.CreditApplied || order.PointsToCredit == 0 {
					return errSkipped
				}
				return s.deps.Profile.MirrorPointsIncrement(ctx, order.WalletOwnerID, order.PointsToCredit)
			},
		},
		s.notifyEffect(order, domain.NotificationTopupSucceeded, map[string]string{
			"order_id":    order.OrderID,
			"points":      strconv.FormatInt(order.PointsToCredit, 10),
			"amount":      domain.FormatMinor(order.AmountMinor, s.opts.CurrencyExponent),
			"currency":    order.Currency,
			"new_balance": strconv.FormatInt(res.NewBalance, 10),
		}),
		{
			name: "publish_event",
			run: func(ctx context.Context) error {
				if s.deps.Publisher == nil {
					return errSkipped
				}
				return s.deps.Publisher.PublishSettlement(ctx, domain.SettlementEvent{
					OrderID:               order.OrderID,
					ProviderTransactionID: req.ProviderTransactionID,
					WalletOwnerID:         order.WalletOwnerID,
					AmountMinor:           order.AmountMinor,
					Currency:              order.Currency,
					Points:                order.PointsToCredit,
					NewBalance:            res.NewBalance,
					CreditApplied:         res.CreditApplied,
					SettledAt:             *order.CompletedAt,
				})
			},
		},
	}
}

func (s *SettlementServiceImpl) rememberEffect(providerTxID string, status domain.OrderStatus) softEffect {
	return softEffect{
		name: "remember",
		run: func(ctx context.Context) error {
			return s.deps.Guard.Remember(ctx, providerTxID, status)
		},
	}
}

// notifyEffect sends a notification and logs the attempt to the delivery log.
func (s *SettlementServiceImpl) notifyEffect(order *domain.Order, kind domain.NotificationKind, msgCtx map[string]string) softEffect {
	return softEffect{
		name: "notify",
		run: func(ctx context.Context) error {
			sendErr := s.deps.Notifier.Notify(ctx, domain.Notification{
				RecipientRef: order.WalletOwnerID,
				Kind:         kind,
				Context:      msgCtx,
			})
			if s.deps.NotificationLog != nil {
				d := &domain.NotificationDelivery{
					ID:           uuid.New(),
					OrderID:      order.ID,
					RecipientRef: order.WalletOwnerID,
					Kind:         kind,
					Status:       domain.DeliveryStatusDelivered,
					CreatedAt:    s.now().UTC(),
				}
				if sendErr != nil {
					msg := sendErr.Error()
					d.Status = domain.DeliveryStatusFailed
					d.LastError = &msg
				}
				if err := s.deps.NotificationLog.Create(ctx, d); err != nil {
					s.log.Warn().Err(err).Str("order_id", order.OrderID).Msg("failed to record notification delivery")
				}
			}
			return sendErr
		},
	}
}

// applyTopupCredit credits order's points inside a savepoint of tx. On error
// the savepoint is rolled back and tx stays usable.
func applyTopupCredit(ctx context.Context, tx pgx.Tx, wallets ports.WalletRepository, ledger ports.LedgerRepository, order *domain.Order, now time.Time) (int64, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("open savepoint: %w", err)
	}
	defer sp.Rollback(ctx) //nolint:errcheck

	wallet, err := wallets.GetOrCreateForUpdate(ctx, sp, order.WalletOwnerID)
	if err != nil {
		return 0, fmt.Errorf("lock wallet: %w", err)
	}

	entry := domain.NewTopupEntry(wallet, order, now)
	if err := ledger.Append(ctx, sp, entry); err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}

	balance, err := wallets.ApplyDelta(ctx, sp, order.WalletOwnerID, entry.PointsChange, entry.EntryHash)
	if err != nil {
		return 0, fmt.Errorf("apply wallet delta: %w", err)
	}
	if balance != entry.BalanceAfter {
		return 0, fmt.Errorf("wallet balance %d does not match ledger balance_after %d", balance, entry.BalanceAfter)
	}

	if err := sp.Commit(ctx); err != nil {
		return 0, fmt.Errorf("release savepoint: %w", err)
	}
	return balance, nil
}
