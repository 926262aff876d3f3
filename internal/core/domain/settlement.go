package domain

import "time"

// SettlementOutcome is the business result of processing a webhook.
type SettlementOutcome string

const (
	OutcomeSettled        SettlementOutcome = "SETTLED"
	OutcomeAlreadySettled SettlementOutcome = "ALREADY_SETTLED"
	OutcomeMarkedFailed   SettlementOutcome = "MARKED_FAILED"
	OutcomeAlreadyFailed  SettlementOutcome = "ALREADY_FAILED"
	OutcomeIgnored        SettlementOutcome = "IGNORED"
)

// GuardResult is the Idempotency Guard's advisory answer.
type GuardResult struct {
	Duplicate   bool
	PriorStatus OrderStatus
	Source      string // "cache", "log" or "order"
}

// Fresh is the guard result for an unseen provider transaction.
var Fresh = GuardResult{}

// EffectOutcome records the result of one post-commit soft effect.
type EffectOutcome struct {
	Name    string `json:"name"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the effect ran without error.
func (e EffectOutcome) OK() bool { return e.Error == "" }

// SettlementResult is what the Settlement Engine returns for a handled webhook.
type SettlementResult struct {
	Outcome       SettlementOutcome
	Order         *Order
	NewBalance    int64
	CreditApplied bool
	// Inconsistency is set when the order settled but the wallet credit did not apply.
	Inconsistency bool
	Effects       []EffectOutcome
}

// SettlementEvent is published to downstream consumers after a successful settlement.
type SettlementEvent struct {
	OrderID               string    `json:"order_id"`
	ProviderTransactionID string    `json:"provider_transaction_id"`
	WalletOwnerID         string    `json:"wallet_owner_id"`
	AmountMinor           int64     `json:"amount_minor"`
	Currency              string    `json:"currency"`
	Points                int64     `json:"points"`
	NewBalance            int64     `json:"new_balance"`
	CreditApplied         bool      `json:"credit_applied"`
	SettledAt             time.Time `json:"settled_at"`
}
