package utils

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitwit/x402core/types"
)

// FormatAmount renders an integer amount in whole units, e.g. 1500000 with
// 6 decimals is "1.5".
func FormatAmount(amount types.Amount, decimals int) string {
	if decimals <= 0 {
		return amount.String()
	}
	dec := decimal.NewFromBigInt(amount.BigInt(), -int32(decimals))
	return dec.String()
}

// ParseAmountWithDecimals parses a decimal amount string expressed in whole
// units and converts it to the smallest unit, e.g. "1.5" with 6 decimals is
// 1500000. Amounts with more fractional digits than decimals are rejected.
func ParseAmountWithDecimals(amount string, decimals int) (types.Amount, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return types.Amount{}, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.IsNegative() {
		return types.Amount{}, fmt.Errorf("amount cannot be negative")
	}

	// Multiply by 10^decimals to get the raw integer amount
	multiplier := decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil), 0)
	scaled := dec.Mul(multiplier)
	if !scaled.Equal(scaled.Truncate(0)) {
		return types.Amount{}, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	return types.AmountFromBig(scaled.BigInt())
}

// ValidateDeadline ensures a unix deadline is not before now
func ValidateDeadline(deadline uint64, now time.Time) error {
	if deadline < uint64(now.Unix()) {
		return fmt.Errorf("deadline %d is in the past", deadline)
	}

	return nil
}
