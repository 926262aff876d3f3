package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // not exposed to the caller
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError with the same code, so errors.Is(err, ErrOrderNotFound()) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// WithDetail returns a copy carrying a more specific client message.
func (e *AppError) WithDetail(msg string) *AppError {
	cp := *e
	cp.Message = e.Message + ": " + msg
	return &cp
}

// ---- Provider webhooks (WH) ----

func ErrInvalidPayload() *AppError {
	return New("WH_001", "Invalid webhook payload", http.StatusBadRequest)
}

func ErrInvalidSignature() *AppError {
	return New("WH_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrStaleTimestamp() *AppError {
	return New("WH_003", "Timestamp outside the accepted window", http.StatusUnauthorized)
}

func ErrOrderNotFound() *AppError {
	return New("WH_004", "Order not found for transaction", http.StatusBadRequest)
}

func ErrAmountMismatch() *AppError {
	return New("WH_005", "Amount does not match order", http.StatusBadRequest)
}

func ErrOrderRejected() *AppError {
	return New("WH_006", "Order is no longer payable", http.StatusBadRequest)
}

func ErrWebhookDisabled() *AppError {
	return New("WH_007", "Payment webhooks are disabled", http.StatusForbidden)
}

// ---- Top-up orders (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrQRAlreadyIssued() *AppError {
	return New("PAY_008", "QR already issued for this order", http.StatusConflict)
}

func ErrOrderNotPending() *AppError {
	return New("PAY_009", "Order is not pending", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Requests (REQ) ----

func ErrPayloadTooLarge() *AppError {
	return New("REQ_001", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Collaborators (PRV) ----

func ErrProviderUnavailable(err error) *AppError {
	return Wrap("PRV_001", "Payment provider unavailable", http.StatusBadGateway, err)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// ErrLedgerInconsistency marks a settled order whose wallet credit did not apply.
// Never returned to the provider; used by reconciliation.
func ErrLedgerInconsistency(err error) *AppError {
	return Wrap("SYS_004", "Ledger inconsistency", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
