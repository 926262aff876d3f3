package service

import (
	"context"
	"fmt"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"

	"github.com/rs/zerolog"
)

// IdempotencyGuardImpl implements ports.IdempotencyGuard with three layers:
// Redis, the processed-transactions log, and the mapped order's status.
// Its answer is advisory; settlement correctness rests on the conditional
// order update.
type IdempotencyGuardImpl struct {
	cache     ports.IdempotencyCache // optional
	processed ports.ProcessedTransactionRepository
	orders    ports.OrderRepository
	ttl       time.Duration
	log       zerolog.Logger
}

// NewIdempotencyGuard creates a guard. cache may be nil.
func NewIdempotencyGuard(
	cache ports.IdempotencyCache,
	processed ports.ProcessedTransactionRepository,
	orders ports.OrderRepository,
	ttl time.Duration,
	log zerolog.Logger,
) *IdempotencyGuardImpl {
	return &IdempotencyGuardImpl{
		cache:     cache,
		processed: processed,
		orders:    orders,
		ttl:       ttl,
		log:       log,
	}
}

// CheckAndReserve reports whether providerTxID already has a final outcome.
func (g *IdempotencyGuardImpl) CheckAndReserve(ctx context.Context, providerTxID string) (domain.GuardResult, error) {
	key := domain.BuildSettlementKey(providerTxID)

	// Layer 1: Redis
	if g.cache != nil {
		cached, err := g.cache.Get(ctx, key)
		if err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if status := domain.OrderStatus(cached); cached != nil && status.IsTerminal() {
			return domain.GuardResult{Duplicate: true, PriorStatus: status, Source: "cache"}, nil
		}
	}

	// Layer 2: processed-transactions log
	rec, err := g.processed.Get(ctx, providerTxID)
	if err != nil {
		return domain.Fresh, fmt.Errorf("processed log lookup: %w", err)
	}
	if rec != nil {
		return domain.GuardResult{Duplicate: true, PriorStatus: rec.Outcome, Source: "log"}, nil
	}

	// Layer 3: the order itself
	order, err := g.orders.GetByProviderTransactionID(ctx, providerTxID)
	if err != nil {
		return domain.Fresh, fmt.Errorf("order lookup: %w", err)
	}
	if order != nil && order.IsTerminal() {
		return domain.GuardResult{Duplicate: true, PriorStatus: order.Status, Source: "order"}, nil
	}

	return domain.Fresh, nil
}

// Remember warms the cache layer with a committed final status.
func (g *IdempotencyGuardImpl) Remember(ctx context.Context, providerTxID string, status domain.OrderStatus) error {
	if g.cache == nil {
		return nil
	}
	if err := g.cache.Set(ctx, domain.BuildSettlementKey(providerTxID), []byte(status), g.ttl); err != nil {
		return fmt.Errorf("caching settlement status: %w", err)
	}
	return nil
}
