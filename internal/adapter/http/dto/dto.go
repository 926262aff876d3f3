package dto

import "encoding/json"

// CreateTopupRequest is the request body for creating a top-up order.
// Amount is in major units and may be sent as a JSON string or number.
type CreateTopupRequest struct {
	Amount  json.Number     `json:"amount" binding:"required"`
	Contact *ContactRequest `json:"contact,omitempty"`
}

// ContactRequest is optional contact metadata stored with an order.
type ContactRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Phone *string `json:"phone,omitempty" binding:"omitempty,max=20"`
	Email *string `json:"email,omitempty" binding:"omitempty,email,max=254"`
}

// OrderURI binds the :order_id path parameter.
type OrderURI struct {
	OrderID string `uri:"order_id" binding:"required,safe_id,max=40"`
}

// LedgerQuery binds ledger pagination parameters.
type LedgerQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// TopupOrderResponse is the response body for a top-up order.
type TopupOrderResponse struct {
	OrderID               string  `json:"order_id"`
	Amount                string  `json:"amount"`
	Currency              string  `json:"currency"`
	PointsToCredit        int64   `json:"points_to_credit"`
	Status                string  `json:"status"`
	QRIssued              bool    `json:"qr_issued"`
	QRPayload             *string `json:"qr_payload"`
	ProviderTransactionID *string `json:"provider_transaction_id"`
	ExpiresAt             string  `json:"expires_at"`
	CreatedAt             string  `json:"created_at"`
	CompletedAt           *string `json:"completed_at,omitempty"`
}

// WalletBalanceResponse is the response for balance query.
type WalletBalanceResponse struct {
	OwnerID string `json:"owner_id"`
	Balance int64  `json:"balance"`
}

// LedgerEntryResponse is one ledger row.
type LedgerEntryResponse struct {
	ID              string `json:"id"`
	TransactionType string `json:"transaction_type"`
	PointsChange    int64  `json:"points_change"`
	BalanceBefore   int64  `json:"balance_before"`
	BalanceAfter    int64  `json:"balance_after"`
	Description     string `json:"description"`
	CreatedAt       string `json:"created_at"`
}

// LedgerListResponse wraps a paginated ledger list.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}
