package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInexactAmount is returned when a major-unit amount has more fractional
// digits than the currency allows.
var ErrInexactAmount = errors.New("amount is not a whole number of minor units")

// ErrAmountOutOfRange is returned for amount literals too long or too far
// from unit scale to be a real payment.
var ErrAmountOutOfRange = errors.New("amount out of range")

const (
	// maxAmountLiteral bounds the textual length of an amount.
	maxAmountLiteral = 40
	// maxAmountScale bounds |exponent| of a parsed amount. Rescaling builds
	// 10^|exponent| as a big integer, so it must stay small.
	maxAmountScale = 30
)

// ToMinor converts a major-unit decimal amount into integer minor units.
func ToMinor(major decimal.Decimal, exponent int32) (int64, error) {
	if e := major.Exponent(); e < -maxAmountScale || e > maxAmountScale {
		return 0, ErrAmountOutOfRange
	}
	minor := major.Shift(exponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrInexactAmount
	}
	if !minor.BigInt().IsInt64() {
		return 0, ErrAmountOutOfRange
	}
	return minor.IntPart(), nil
}

// ParseAmount parses a decimal amount literal, refusing oversized input
// before any big-number work happens.
func ParseAmount(s string) (decimal.Decimal, error) {
	if len(s) > maxAmountLiteral {
		return decimal.Decimal{}, ErrAmountOutOfRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if e := d.Exponent(); e < -maxAmountScale || e > maxAmountScale {
		return decimal.Decimal{}, ErrAmountOutOfRange
	}
	return d, nil
}

// ParseMajor parses a major-unit amount string such as "100.00" into minor units.
func ParseMajor(s string, exponent int32) (int64, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	return ToMinor(d, exponent)
}

// FormatMinor renders minor units as a major-unit string with exponent decimals.
func FormatMinor(minor int64, exponent int32) string {
	return decimal.New(minor, -exponent).StringFixed(exponent)
}

// PointsForAmount computes floor(major(amountMinor) * rate).
func PointsForAmount(amountMinor int64, exponent int32, rate decimal.Decimal) int64 {
	return decimal.New(amountMinor, -exponent).Mul(rate).Floor().IntPart()
}
