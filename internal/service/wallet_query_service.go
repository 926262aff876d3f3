package service

import (
	"context"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/pkg/apperror"
)

const maxLedgerPageSize = 100

// walletQueryService implements ports.WalletQueryService.
type walletQueryService struct {
	wallets ports.WalletRepository
	ledger  ports.LedgerRepository
}

// NewWalletQueryService creates a new wallet query service.
func NewWalletQueryService(wallets ports.WalletRepository, ledger ports.LedgerRepository) ports.WalletQueryService {
	return &walletQueryService{wallets: wallets, ledger: ledger}
}

// GetBalance returns the owner's wallet, creating an empty one on first sight.
func (s *walletQueryService) GetBalance(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if ownerID == "" {
		return nil, apperror.ErrInvalidToken()
	}
	w, err := s.wallets.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return w, nil
}

// ListLedger returns a page of the owner's ledger, newest first.
func (s *walletQueryService) ListLedger(ctx context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	if ownerID == "" {
		return nil, 0, apperror.ErrInvalidToken()
	}
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = 20
	case pageSize > maxLedgerPageSize:
		pageSize = maxLedgerPageSize
	}

	entries, total, err := s.ledger.ListByOwner(ctx, ownerID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}
