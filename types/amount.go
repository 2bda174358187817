package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit quantity in the smallest unit of an asset
// (wei for native ETH). The zero value is 0.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding x.
func NewAmount(x uint64) Amount {
	var a Amount
	a.v.SetUint64(x)
	return a
}

// ParseAmount parses a decimal string, or a hex string with a 0x prefix.
// Negative values and values wider than 256 bits are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("amount cannot be empty")
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	if digits == "" || strings.ContainsAny(digits, "+-") {
		return Amount{}, fmt.Errorf("invalid amount format: %q", s)
	}

	b, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount format: %q", s)
	}
	return AmountFromBig(b)
}

// AmountFromBig converts b to an Amount.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount cannot be negative")
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, fmt.Errorf("amount exceeds 256 bits")
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is like ParseAmount but panics on error. Intended for
// constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// BigInt returns a copy of the amount as a big.Int.
func (a Amount) BigInt() *big.Int {
	return a.v.ToBig()
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal or 0x-hex string, or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}

	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
