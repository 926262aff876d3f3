package domain

import (
	"bytes"
	"crypto/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		want   bool
	}{
		{"pending", OrderStatusPending, false},
		{"success", OrderStatusSuccess, true},
		{"failed", OrderStatusFailed, true},
		{"expired", OrderStatusExpired, true},
		{"unknown", OrderStatus("REFUNDED"), false},
		{"empty", OrderStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status}
			assert.Equal(t, tt.want, o.IsTerminal())
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusSuccess, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusExpired, true},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusSuccess, OrderStatusFailed, false},
		{OrderStatusSuccess, OrderStatusPending, false},
		{OrderStatusFailed, OrderStatusSuccess, false},
		{OrderStatusExpired, OrderStatusSuccess, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestNewOrderID_Format(t *testing.T) {
	now := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	id, err := NewOrderID("TOPUP", now, bytes.NewReader(bytes.Repeat([]byte{0, 1, 35, 36, 71}, 4)))
	require.NoError(t, err)
	assert.Equal(t, "TOPUP-20260309-01Z0Z", id)
}

func TestNewOrderID_SkipsBiasedBytes(t *testing.T) {
	now := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	src := append(bytes.Repeat([]byte{255}, 8), bytes.Repeat([]byte{10}, 8)...)
	id, err := NewOrderID("TP", now, bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "TP-20260309-AAAAA", id)
}

func TestNewOrderID_Random(t *testing.T) {
	re := regexp.MustCompile(`^TOPUP-\d{8}-[0-9A-Z]{5}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := NewOrderID("TOPUP", time.Now(), rand.Reader)
		require.NoError(t, err)
		assert.Regexp(t, re, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestNewOrderID_ReaderError(t *testing.T) {
	_, err := NewOrderID("TOPUP", time.Now(), strings.NewReader("abc"))
	assert.Error(t, err)
}

func TestPointsForAmount(t *testing.T) {
	tests := []struct {
		name   string
		minor  int64
		rate   string
		points int64
	}{
		{"one point per unit", 10000, "1", 100},
		{"fractional amount floors", 10050, "1", 100},
		{"rate 1.5", 10000, "1.5", 150},
		{"rate below one floors", 999, "0.1", 0},
		{"zero rate", 10000, "0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.points, PointsForAmount(tt.minor, 2, decimal.RequireFromString(tt.rate)))
		})
	}
}

func TestParseMajor(t *testing.T) {
	v, err := ParseMajor("100.00", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), v)

	v, err = ParseMajor("99", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(9900), v)

	_, err = ParseMajor("1.005", 2)
	assert.ErrorIs(t, err, ErrInexactAmount)

	_, err = ParseMajor("abc", 2)
	assert.Error(t, err)

	assert.Equal(t, "100.50", FormatMinor(10050, 2))
}

func TestParseMajor_RejectsExtremeScale(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"tiny exponent", "1e-999999999"},
		{"huge exponent", "1e999999999"},
		{"moderate exponent", "1e-31"},
		{"long literal", "1." + strings.Repeat("0", 60)},
		{"beyond int64", "99999999999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			_, err := ParseMajor(tt.input, 2)
			assert.ErrorIs(t, err, ErrAmountOutOfRange)
			assert.Less(t, time.Since(start), time.Second)
		})
	}

	v, err := ParseMajor("1e2", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), v)
}

func TestToMinor_RejectsExtremeScale(t *testing.T) {
	_, err := ToMinor(decimal.New(1, -999999999), 2)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
	_, err = ToMinor(decimal.New(1, 999999999), 2)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
}

func TestLedgerEntry_Validate(t *testing.T) {
	ok := &LedgerEntry{WalletOwnerID: "u1", TransactionType: LedgerTypeTopup, PointsChange: 10, BalanceBefore: 5, BalanceAfter: 15}
	assert.NoError(t, ok.Validate())

	bad := *ok
	bad.BalanceAfter = 14
	assert.Error(t, bad.Validate())

	noOwner := *ok
	noOwner.WalletOwnerID = ""
	assert.Error(t, noOwner.Validate())

	badType := *ok
	badType.TransactionType = "GIFT"
	assert.Error(t, badType.Validate())

	negative := &LedgerEntry{WalletOwnerID: "u1", TransactionType: LedgerTypeRedeem, PointsChange: -20, BalanceBefore: 5, BalanceAfter: -15}
	assert.Error(t, negative.Validate())
}

func TestNewTopupEntry_ChainsHashes(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := &Wallet{OwnerID: "u1"}
	o1 := &Order{ID: uuid.New(), OrderID: "TOPUP-20260102-AAAAA", PointsToCredit: 100}
	o2 := &Order{ID: uuid.New(), OrderID: "TOPUP-20260102-BBBBB", PointsToCredit: 50}

	e1 := NewTopupEntry(w, o1, now)
	require.NoError(t, e1.Validate())
	w.Balance, w.LastAuditHash = e1.BalanceAfter, &e1.EntryHash

	e2 := NewTopupEntry(w, o2, now.Add(time.Minute))
	require.NoError(t, e2.Validate())
	assert.Equal(t, int64(100), e2.BalanceBefore)
	assert.Equal(t, int64(150), e2.BalanceAfter)
	assert.Len(t, e1.EntryHash, 64)
	assert.NotEqual(t, e1.EntryHash, e2.EntryHash)

	assert.Equal(t, -1, VerifyChain([]LedgerEntry{*e1, *e2}))

	tampered := *e2
	tampered.PointsChange = 500
	tampered.BalanceAfter = 600
	assert.Equal(t, 1, VerifyChain([]LedgerEntry{*e1, tampered}))
}

func TestParseWebhookPayload(t *testing.T) {
	valid := `{"event":"payment.success","transactionId":"ptx-1","amount":100.00,"currency":"thb","timestamp":"2026-01-02T03:04:05Z","metadata":{"orderId":"TOPUP-20260102-AAAAA"}}`

	p, err := ParseWebhookPayload([]byte(valid), 2)
	require.NoError(t, err)
	assert.Equal(t, WebhookEventPaymentSuccess, p.Event)
	assert.Equal(t, "ptx-1", p.TransactionID)
	assert.Equal(t, int64(10000), p.AmountMinor)
	assert.Equal(t, "THB", p.Currency)
	assert.Equal(t, "TOPUP-20260102-AAAAA", p.OrderID)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `not-json`},
		{"array", `[]`},
		{"unknown event", `{"event":"payment.pending","transactionId":"t","amount":1,"currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
		{"missing tx id", `{"event":"payment.success","amount":1,"currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
		{"zero amount", `{"event":"payment.success","transactionId":"t","amount":0,"currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
		{"negative amount", `{"event":"payment.success","transactionId":"t","amount":-5,"currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
		{"sub-minor amount", `{"event":"payment.success","transactionId":"t","amount":1.001,"currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
		{"missing currency", `{"event":"payment.success","transactionId":"t","amount":1,"timestamp":"2026-01-02T03:04:05Z"}`},
		{"bad timestamp", `{"event":"payment.success","transactionId":"t","amount":1,"currency":"THB","timestamp":"yesterday"}`},
		{"quoted amount", `{"event":"payment.success","transactionId":"t","amount":"100.00","currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
		{"null amount", `{"event":"payment.success","transactionId":"t","amount":null,"currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
		{"boolean amount", `{"event":"payment.success","transactionId":"t","amount":true,"currency":"THB","timestamp":"2026-01-02T03:04:05Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWebhookPayload([]byte(tt.body), 2)
			assert.Error(t, err)
		})
	}
}

func TestParseWebhookPayload_ExtremeExponentFailsFast(t *testing.T) {
	for _, amount := range []string{"1e-999999999", "1e999999999", "1e-99999999"} {
		t.Run(amount, func(t *testing.T) {
			body := `{"event":"payment.success","transactionId":"tx","amount":` + amount +
				`,"currency":"THB","timestamp":"2026-01-01T00:00:00Z"}`
			start := time.Now()
			_, err := ParseWebhookPayload([]byte(body), 2)
			assert.ErrorIs(t, err, ErrAmountOutOfRange)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestVerification(t *testing.T) {
	assert.True(t, Accepted(&WebhookPayload{}).Valid())
	v := Rejected(FailureInvalidSignature, "mismatch")
	assert.False(t, v.Valid())
	assert.Equal(t, FailureInvalidSignature, v.Failure)
}

func TestBuildSettlementKey(t *testing.T) {
	assert.Equal(t, "settle:ptx-1", BuildSettlementKey("ptx-1"))
}

func TestOrderStatus_Constants(t *testing.T) {
	assert.Equal(t, OrderStatus("PENDING"), OrderStatusPending)
	assert.Equal(t, OrderStatus("SUCCESS"), OrderStatusSuccess)
	assert.Equal(t, OrderStatus("FAILED"), OrderStatusFailed)
	assert.Equal(t, OrderStatus("EXPIRED"), OrderStatusExpired)
}
