package domain

import "time"

// ProcessedTransaction is the durable record that a provider transaction id
// has produced a final order outcome.
type ProcessedTransaction struct {
	ProviderTransactionID string      `json:"provider_transaction_id"`
	OrderID               string      `json:"order_id"`
	Outcome               OrderStatus `json:"outcome"`
	Payload               []byte      `json:"payload"` // raw webhook body
	CreatedAt             time.Time   `json:"created_at"`
}

// BuildSettlementKey constructs the cache key for a provider transaction id.
func BuildSettlementKey(providerTxID string) string {
	return "settle:" + providerTxID
}
