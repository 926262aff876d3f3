package middleware

import (
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Keys the webhook handler sets for the receipt audit.
const (
	CtxWebhookBody    = "webhook_body"
	CtxWebhookTxID    = "webhook_provider_tx_id"
	CtxWebhookEvent   = "webhook_event"
	CtxWebhookOutcome = "webhook_outcome"
	CtxWebhookReason  = "webhook_reason"
)

// WebhookAudit records a receipt for every webhook delivery once the
// handler has answered, accepted or not.
func WebhookAudit(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		body, _ := c.Get(CtxWebhookBody)
		raw, _ := body.([]byte)

		auditSvc.RecordReceipt(c.Request.Context(), &domain.WebhookReceipt{
			ID:                    uuid.New(),
			ProviderTransactionID: c.GetString(CtxWebhookTxID),
			Event:                 c.GetString(CtxWebhookEvent),
			HTTPStatus:            c.Writer.Status(),
			Outcome:               c.GetString(CtxWebhookOutcome),
			Reason:                c.GetString(CtxWebhookReason),
			RawPayload:            raw,
			ClientIP:              c.ClientIP(),
			CreatedAt:             time.Now().UTC(),
		})
	}
}
