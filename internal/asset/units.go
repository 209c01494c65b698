package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: too many decimal places")
)

// ParseUnits scales a human amount to base units (e.g. 1.5 with 18 decimals
// becomes 1500000000000000000). Fractions finer than the token allows are rejected.
// This is a BOUNDARY function - use for request amounts.
func ParseUnits(d decimal.Decimal, decimals uint8) (*big.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", ErrTooManyDecimals, d, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits converts base units back to a human amount.
func FormatUnits(v *big.Int, decimals uint8) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}

// ParseBaseUnits parses a base-unit integer string as sent over the wire.
func ParseBaseUnits(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
