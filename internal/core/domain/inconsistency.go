package domain

import (
	"time"

	"github.com/google/uuid"
)

// InconsistencyStatus tracks operator follow-up.
type InconsistencyStatus string

const (
	InconsistencyOpen     InconsistencyStatus = "OPEN"
	InconsistencyResolved InconsistencyStatus = "RESOLVED"
)

// LedgerInconsistency records an order that reached SUCCESS without its
// wallet credit being applied. Rows are queued for reconciliation.
type LedgerInconsistency struct {
	ID                    uuid.UUID           `json:"id"`
	OrderID               uuid.UUID           `json:"order_id"`
	ProviderTransactionID string              `json:"provider_transaction_id"`
	WalletOwnerID         string              `json:"wallet_owner_id"`
	Points                int64               `json:"points"`
	Reason                string              `json:"reason"`
	Status                InconsistencyStatus `json:"status"`
	CreatedAt             time.Time           `json:"created_at"`
	ResolvedAt            *time.Time          `json:"resolved_at,omitempty"`
	ResolutionNote        *string             `json:"resolution_note,omitempty"`
}
