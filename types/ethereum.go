package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignatureLength is the size of an r || s || v secp256k1 signature.
const SignatureLength = 65

// Signature holds the raw r || s || v bytes of a payment signature. It is
// encoded as a 0x-prefixed hex string; decoding also accepts a JSON array
// of byte values.
type Signature []byte

// V returns the recovery byte, or 0 if the signature is malformed.
func (s Signature) V() byte {
	if len(s) != SignatureLength {
		return 0
	}
	return s[64]
}

func (s Signature) String() string {
	return hexutil.Encode(s)
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Encode(s))
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		// encoding/json reads []uint8 only from base64 strings, so the array
		// form goes through ints.
		var ints []int
		if err := json.Unmarshal(data, &ints); err != nil {
			return err
		}
		raw := make([]uint8, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return fmt.Errorf("signature byte %d out of range: %d", i, v)
			}
			raw[i] = uint8(v)
		}
		*s = raw
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if !strings.HasPrefix(str, "0x") && !strings.HasPrefix(str, "0X") {
		str = "0x" + str
	}
	b, err := hexutil.Decode(str)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	*s = b
	return nil
}

// ParseAddress parses a 0x-prefixed, 40 hex digit address. Mixed-case input
// is accepted without enforcing the EIP-55 checksum.
func ParseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, NewInvalidAddressError(field, s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, NewInvalidAddressError(field, s)
	}
	return common.HexToAddress(s), nil
}

// ParseOptionalAddress is ParseAddress for optional fields: an empty string
// yields nil.
func ParseOptionalAddress(field, s string) (*common.Address, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	addr, err := ParseAddress(field, s)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
