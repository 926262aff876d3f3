package handler

import (
	"errors"
	"io"

	"loyalty-topup/internal/adapter/http/middleware"
	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/pkg/apperror"
	"loyalty-topup/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookOptions configures the provider webhook endpoint.
type WebhookOptions struct {
	Enabled         bool
	SignatureHeader string
	TimestampHeader string
}

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	verifier   ports.WebhookVerifier
	settlement ports.SettlementService
	opts       WebhookOptions
	log        zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier ports.WebhookVerifier, settlement ports.SettlementService, opts WebhookOptions, log zerolog.Logger) *WebhookHandler {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "X-Signature"
	}
	if opts.TimestampHeader == "" {
		opts.TimestampHeader = "X-Timestamp"
	}
	return &WebhookHandler{verifier: verifier, settlement: settlement, opts: opts, log: log}
}

// HandlePayment handles POST /api/v1/webhooks/payment.
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	if !h.opts.Enabled {
		h.reject(c, apperror.ErrWebhookDisabled(), "")
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.reject(c, apperror.ErrInvalidPayload().WithDetail("unreadable body"), err.Error())
		return
	}
	c.Set(middleware.CtxWebhookBody, raw)

	v := h.verifier.Verify(raw, c.GetHeader(h.opts.SignatureHeader), c.GetHeader(h.opts.TimestampHeader))
	if !v.Valid() {
		h.reject(c, verificationError(v), v.Detail)
		return
	}

	p := v.Payload
	c.Set(middleware.CtxWebhookTxID, p.TransactionID)
	c.Set(middleware.CtxWebhookEvent, string(p.Event))

	res, err := h.settlement.Settle(c.Request.Context(), ports.SettleRequest{
		ProviderTransactionID: p.TransactionID,
		Event:                 p.Event,
		AmountMinor:           p.AmountMinor,
		Currency:              p.Currency,
		OrderID:               p.OrderID,
		RawPayload:            raw,
	})
	if err != nil {
		h.reject(c, err, err.Error())
		return
	}

	c.Set(middleware.CtxWebhookOutcome, string(res.Outcome))
	if res.Inconsistency {
		// the provider was paid and the order is final; reconciliation owns the credit now
		c.Set(middleware.CtxWebhookReason, "wallet credit queued for reconciliation")
	}
	response.Ack(c)
}

func (h *WebhookHandler) reject(c *gin.Context, err error, reason string) {
	if errors.Is(err, apperror.ErrLedgerInconsistency(nil)) {
		err = apperror.InternalError(err)
	}
	code := "SYS_000"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}

	c.Set(middleware.CtxWebhookOutcome, code)
	c.Set(middleware.CtxWebhookReason, reason)

	event := h.log.Warn()
	if response.Status(err) >= 500 {
		event = h.log.Error()
	}
	event.Err(err).Str("error_code", code).Str("provider_tx_id", c.GetString(middleware.CtxWebhookTxID)).Msg("webhook rejected")
	response.Nack(c, err)
}

func verificationError(v domain.Verification) *apperror.AppError {
	switch v.Failure {
	case domain.FailureInvalidSignature:
		return apperror.ErrInvalidSignature()
	case domain.FailureStaleOrFutureTimestamp:
		return apperror.ErrStaleTimestamp()
	default:
		return apperror.ErrInvalidPayload().WithDetail(v.Detail)
	}
}
