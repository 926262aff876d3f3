// Command reconcile works the ledger inconsistency queue: orders that settled
// with the provider but whose wallet credit did not apply.
package main

import (
	"context"
	"fmt"
	"os"

	"loyalty-topup/config"
	"loyalty-topup/internal/adapter/provider"
	"loyalty-topup/internal/adapter/storage"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/internal/service"
	"loyalty-topup/pkg/logger"
)

func main() {
	if err := newRootCmd(openService).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openService wires the reconciliation service against the configured store.
func openService(ctx context.Context, configPath string) (ports.ReconciliationService, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	repos, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}

	deps := service.ReconciliationDeps{
		Orders:          repos.Orders,
		Wallets:         repos.Wallets,
		Ledger:          repos.Ledger,
		Inconsistencies: repos.Inconsistencies,
		Transactor:      repos.Transactor,
	}
	if cfg.Provider.Profile.BaseURL != "" {
		deps.Profile = provider.NewProfileClient(cfg.Provider.Profile, provider.NewHTTPClient(cfg.Provider.Profile.Timeout))
	}
	return service.NewReconciliationService(deps, cfg.Settlement.SoftEffectTimeout, logger.Component(log, "reconcile")), repos.Close, nil
}
