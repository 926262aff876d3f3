package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind is the event a wallet owner is notified about.
type NotificationKind string

const (
	NotificationTopupSucceeded NotificationKind = "TOPUP_SUCCEEDED"
	NotificationTopupFailed    NotificationKind = "TOPUP_FAILED"
)

// DeliveryStatus represents the state of a notification attempt.
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// Notification is the typed request handed to the notifier. Message
// formatting happens on the gateway side.
type Notification struct {
	RecipientRef string            `json:"recipient_ref"`
	Kind         NotificationKind  `json:"kind"`
	Context      map[string]string `json:"context"`
}

// NotificationDelivery logs one best-effort notification attempt so failed
// ones can be retried out-of-band.
type NotificationDelivery struct {
	ID           uuid.UUID        `json:"id"`
	OrderID      uuid.UUID        `json:"order_id"`
	RecipientRef string           `json:"recipient_ref"`
	Kind         NotificationKind `json:"kind"`
	Status       DeliveryStatus   `json:"status"`
	LastError    *string          `json:"last_error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
