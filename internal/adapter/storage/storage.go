// Package storage opens the configured persistence backend and exposes it
// through the repository ports.
package storage

import (
	"context"
	"fmt"

	"loyalty-topup/config"
	"loyalty-topup/internal/adapter/storage/memory"
	"loyalty-topup/internal/adapter/storage/postgres"
	"loyalty-topup/internal/core/ports"

	"github.com/rs/zerolog"
)

// Repositories is every repository the services need, backed by one driver.
type Repositories struct {
	Orders          ports.OrderRepository
	Wallets         ports.WalletRepository
	Ledger          ports.LedgerRepository
	Processed       ports.ProcessedTransactionRepository
	Inconsistencies ports.InconsistencyRepository
	Receipts        ports.WebhookReceiptRepository
	Notifications   ports.NotificationLogRepository
	Transactor      ports.DBTransactor
	Health          ports.HealthChecker

	close func()
}

// Close releases the backend's resources.
func (r *Repositories) Close() {
	if r.close != nil {
		r.close()
	}
}

// Open connects to the backend named by cfg.Driver. For postgres it applies
// migrations first when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*Repositories, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		return Memory(memory.NewStore()), nil
	case "postgres", "":
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, pool, log); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrating database: %w", err)
			}
		}
		repos := Postgres(pool)
		repos.close = pool.Close
		return repos, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Postgres wires the PostgreSQL repositories on pool.
func Postgres(pool postgres.Pool) *Repositories {
	return &Repositories{
		Orders:          postgres.NewOrderRepo(pool),
		Wallets:         postgres.NewWalletRepo(pool),
		Ledger:          postgres.NewLedgerRepo(pool),
		Processed:       postgres.NewProcessedTxRepo(pool),
		Inconsistencies: postgres.NewInconsistencyRepo(pool),
		Receipts:        postgres.NewWebhookReceiptRepo(pool),
		Notifications:   postgres.NewNotificationLogRepo(pool),
		Transactor:      postgres.NewTransactor(pool),
		Health:          postgres.NewHealthCheck(pool),
	}
}

// Memory wires the in-memory repositories on store.
func Memory(store *memory.Store) *Repositories {
	return &Repositories{
		Orders:          store.Orders(),
		Wallets:         store.Wallets(),
		Ledger:          store.Ledger(),
		Processed:       store.ProcessedTransactions(),
		Inconsistencies: store.Inconsistencies(),
		Receipts:        store.WebhookReceipts(),
		Notifications:   store.NotificationLog(),
		Transactor:      store,
		Health:          store,
	}
}
