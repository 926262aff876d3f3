package service

import (
	"context"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"

	"github.com/rs/zerolog"
)

const receiptWriteTimeout = 5 * time.Second

type auditService struct {
	repo ports.WebhookReceiptRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, receipts are only written to the logger.
func NewAuditService(repo ports.WebhookReceiptRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// RecordReceipt stores a webhook receipt asynchronously (fire-and-forget).
// The write outlives the request that produced it.
func (s *auditService) RecordReceipt(ctx context.Context, receipt *domain.WebhookReceipt) {
	bg := context.WithoutCancel(ctx)
	go func() {
		s.log.Info().
			Str("provider_tx_id", receipt.ProviderTransactionID).
			Str("event", receipt.Event).
			Int("status", receipt.HTTPStatus).
			Str("outcome", receipt.Outcome).
			Str("ip", receipt.ClientIP).
			Msg("webhook receipt")

		if s.repo == nil {
			return
		}
		wctx, cancel := context.WithTimeout(bg, receiptWriteTimeout)
		defer cancel()
		if err := s.repo.Create(wctx, receipt); err != nil {
			s.log.Warn().Err(err).Str("provider_tx_id", receipt.ProviderTransactionID).Msg("failed to persist webhook receipt")
		}
	}()
}
