package domain

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of a top-up order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusSuccess OrderStatus = "SUCCESS"
	OrderStatusFailed  OrderStatus = "FAILED"
	OrderStatusExpired OrderStatus = "EXPIRED"
)

// IsTerminal reports whether s is a final state.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusSuccess, OrderStatusFailed, OrderStatusExpired:
		return true
	}
	return false
}

// ErrDuplicateOrderID is returned by the order store when the generated
// human-readable order id collides with an existing one.
var ErrDuplicateOrderID = errors.New("duplicate order id")

// ContactInfo is optional metadata supplied by the caller when ordering.
type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Order is a single top-up request. It is created PENDING and moves
// exactly once into SUCCESS, FAILED or EXPIRED.
type Order struct {
	ID                    uuid.UUID    `json:"id"`
	OrderID               string       `json:"order_id"`
	WalletOwnerID         string       `json:"wallet_owner_id"`
	AmountMinor           int64        `json:"amount_minor"`
	Currency              string       `json:"currency"`
	PointsToCredit        int64        `json:"points_to_credit"`
	Status                OrderStatus  `json:"status"`
	ProviderTransactionID *string      `json:"provider_transaction_id,omitempty"`
	QRPayload             *string      `json:"qr_payload,omitempty"`
	ExpiresAt             time.Time    `json:"expires_at"`
	Contact               *ContactInfo `json:"contact,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
	CompletedAt           *time.Time   `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the order is in a final state.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// QRIssued reports whether the provider has accepted the order.
func (o *Order) QRIssued() bool {
	return o.ProviderTransactionID != nil && *o.ProviderTransactionID != ""
}

// CanTransition reports whether from -> to is a legal order transition.
// Only PENDING orders move; every other state is terminal.
func CanTransition(from, to OrderStatus) bool {
	if from != OrderStatusPending {
		return false
	}
	switch to {
	case OrderStatusSuccess, OrderStatusFailed, OrderStatusExpired:
		return true
	}
	return false
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// orderIDSuffixLen is the number of random base36 characters in an order id.
const orderIDSuffixLen = 5

// NewOrderID builds "PREFIX-yyyymmdd-XXXXX" with a random upper-case base36 suffix.
// rnd is normally crypto/rand.Reader.
func NewOrderID(prefix string, now time.Time, rnd io.Reader) (string, error) {
	suffix := make([]byte, 0, orderIDSuffixLen)
	buf := make([]byte, 8)
	for len(suffix) < orderIDSuffixLen {
		if _, err := io.ReadFull(rnd, buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			// 252 = 7*36; drop the tail to keep the distribution uniform
			if b >= 252 {
				continue
			}
			suffix = append(suffix, base36[b%36])
			if len(suffix) == orderIDSuffixLen {
				break
			}
		}
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix), nil
}
