package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookReceipt audits one inbound provider delivery, accepted or not.
type WebhookReceipt struct {
	ID                    uuid.UUID `json:"id"`
	ProviderTransactionID string    `json:"provider_transaction_id,omitempty"`
	Event                 string    `json:"event,omitempty"`
	HTTPStatus            int       `json:"http_status"`
	Outcome               string    `json:"outcome"` // settlement outcome or error code
	Reason                string    `json:"reason,omitempty"`
	RawPayload            []byte    `json:"-"`
	ClientIP              string    `json:"client_ip"`
	CreatedAt             time.Time `json:"created_at"`
}
