package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("WH_005", "Amount does not match order", http.StatusBadRequest),
			expected: "[WH_005] Amount does not match order",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("PAY_002", "test", http.StatusBadRequest).Unwrap())
}

func TestAppError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("settling: %w", ErrOrderNotFound())

	assert.True(t, errors.Is(err, ErrOrderNotFound()))
	assert.False(t, errors.Is(err, ErrAmountMismatch()))

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestAppError_WithDetail(t *testing.T) {
	base := ErrInvalidPayload()
	detailed := base.WithDetail("amount is required")

	assert.Equal(t, "Invalid webhook payload: amount is required", detailed.Message)
	assert.Equal(t, "Invalid webhook payload", base.Message)
	assert.True(t, errors.Is(detailed, base))
}

func TestWebhookErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidPayload", ErrInvalidPayload(), "WH_001", 400},
		{"InvalidSignature", ErrInvalidSignature(), "WH_002", 401},
		{"StaleTimestamp", ErrStaleTimestamp(), "WH_003", 401},
		{"OrderNotFound", ErrOrderNotFound(), "WH_004", 400},
		{"AmountMismatch", ErrAmountMismatch(), "WH_005", 400},
		{"OrderRejected", ErrOrderRejected(), "WH_006", 400},
		{"WebhookDisabled", ErrWebhookDisabled(), "WH_007", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestOrderAndAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"NotFound", ErrNotFound("Order"), "PAY_004", 404},
		{"QRAlreadyIssued", ErrQRAlreadyIssued(), "PAY_008", 409},
		{"OrderNotPending", ErrOrderNotPending(), "PAY_009", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", 429},
		{"Validation", Validation("bad input"), "PAY_002", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
	assert.Equal(t, "Order not found", ErrNotFound("Order").Message)
}

func TestSystemErrors(t *testing.T) {
	inner := errors.New("boom")

	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Database", ErrDatabaseError(inner), "SYS_001", 500},
		{"Internal", InternalError(inner), "SYS_001", 500},
		{"LedgerInconsistency", ErrLedgerInconsistency(inner), "SYS_004", 500},
		{"ProviderUnavailable", ErrProviderUnavailable(inner), "PRV_001", 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.ErrorIs(t, tt.err, inner)
		})
	}
}
