package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WebhookEvent is the provider's event kind.
type WebhookEvent string

const (
	WebhookEventPaymentSuccess  WebhookEvent = "payment.success"
	WebhookEventPaymentFailed   WebhookEvent = "payment.failed"
	WebhookEventPaymentRefunded WebhookEvent = "payment.refunded"
)

// Valid reports whether the event is one the pipeline understands.
func (e WebhookEvent) Valid() bool {
	switch e {
	case WebhookEventPaymentSuccess, WebhookEventPaymentFailed, WebhookEventPaymentRefunded:
		return true
	}
	return false
}

// WebhookPayload is the structurally validated provider webhook body.
type WebhookPayload struct {
	Event         WebhookEvent
	TransactionID string
	Amount        decimal.Decimal // major units as sent
	AmountMinor   int64
	Currency      string
	Timestamp     time.Time
	OrderID       string // metadata.orderId, optional
}

type rawWebhookPayload struct {
	Event         string          `json:"event"`
	TransactionID string          `json:"transactionId"`
	Amount        json.RawMessage `json:"amount"`
	Currency      string          `json:"currency"`
	Timestamp     string          `json:"timestamp"`
	Metadata      *struct {
		OrderID string `json:"orderId"`
	} `json:"metadata"`
}

// ParseWebhookPayload decodes and structurally validates a webhook body.
// amount is converted to minor units using exponent and must be exact.
func ParseWebhookPayload(raw []byte, exponent int32) (*WebhookPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var p rawWebhookPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}

	var errs []error
	event := WebhookEvent(p.Event)
	if !event.Valid() {
		errs = append(errs, fmt.Errorf("event %q is not supported", p.Event))
	}
	if strings.TrimSpace(p.TransactionID) == "" {
		errs = append(errs, errors.New("transactionId is required"))
	}
	if strings.TrimSpace(p.Currency) == "" {
		errs = append(errs, errors.New("currency is required"))
	}

	var amount decimal.Decimal
	var minor int64
	if len(p.Amount) == 0 || string(p.Amount) == "null" {
		errs = append(errs, errors.New("amount is required"))
	} else if p.Amount[0] == '"' {
		errs = append(errs, errors.New("amount must be a JSON number"))
	} else if d, err := ParseAmount(string(p.Amount)); err != nil {
		errs = append(errs, fmt.Errorf("amount: %w", err))
	} else if !d.IsPositive() {
		errs = append(errs, errors.New("amount must be positive"))
	} else if m, err := ToMinor(d, exponent); err != nil {
		errs = append(errs, err)
	} else {
		amount, minor = d, m
	}

	var ts time.Time
	if p.Timestamp == "" {
		errs = append(errs, errors.New("timestamp is required"))
	} else if t, err := time.Parse(time.RFC3339Nano, p.Timestamp); err != nil {
		errs = append(errs, fmt.Errorf("timestamp %q is not ISO-8601", p.Timestamp))
	} else {
		ts = t
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := &WebhookPayload{
		Event:         event,
		TransactionID: p.TransactionID,
		Amount:        amount,
		AmountMinor:   minor,
		Currency:      strings.ToUpper(p.Currency),
		Timestamp:     ts,
	}
	if p.Metadata != nil {
		out.OrderID = p.Metadata.OrderID
	}
	return out, nil
}

// VerificationFailure names why a webhook was not accepted.
type VerificationFailure string

const (
	FailureNone                   VerificationFailure = ""
	FailureInvalidPayload         VerificationFailure = "INVALID_PAYLOAD"
	FailureInvalidSignature       VerificationFailure = "INVALID_SIGNATURE"
	FailureStaleOrFutureTimestamp VerificationFailure = "STALE_OR_FUTURE_TIMESTAMP"
)

// Verification is the result of verifying an inbound webhook: either a valid
// payload, or a failure reason with detail. Malformed input is never an error.
type Verification struct {
	Payload *WebhookPayload
	Failure VerificationFailure
	Detail  string
}

// Valid reports whether verification succeeded.
func (v Verification) Valid() bool {
	return v.Failure == FailureNone && v.Payload != nil
}

// Accepted builds a successful verification.
func Accepted(p *WebhookPayload) Verification {
	return Verification{Payload: p}
}

// Rejected builds a failed verification.
func Rejected(reason VerificationFailure, detail string) Verification {
	return Verification{Failure: reason, Detail: detail}
}
