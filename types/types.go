package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
)

// PaymentRequirements is what a resource server demands before releasing a
// resource. It travels base64(JSON) encoded in the X-Payment-Requirements
// header.
type PaymentRequirements struct {
	// Amount in the smallest unit of the asset (wei for native ETH).
	Amount Amount `json:"amount"`

	// Address the payment must be sent to.
	Recipient common.Address `json:"recipient"`

	// Network the payment must be made on.
	Network Network `json:"network"`

	// Token contract address. Nil means the native asset.
	Token *common.Address `json:"token,omitempty"`

	// Human-readable description of the resource.
	Description *string `json:"description,omitempty"`

	// Unix timestamp after which the offer is void.
	ExpiresAt *uint64 `json:"expiresAt,omitempty"`

	// Identifier of the resource being paid for.
	Resource string `json:"resource"`
}

// ChainID returns the chain identifier of the required network.
func (r *PaymentRequirements) ChainID() uint64 {
	return r.Network.ChainID()
}

// PaymentPayload is the intent a payer signs.
type PaymentPayload struct {
	Amount    Amount          `json:"amount"`
	Recipient common.Address  `json:"recipient"`
	Payer     common.Address  `json:"payer"`
	ChainID   uint64          `json:"chainId"`
	Token     *common.Address `json:"token,omitempty"`
	Resource  string          `json:"resource"`

	// Replay-protection tag chosen by the payer. Tracking used nonces is the
	// caller's responsibility.
	Nonce uint64 `json:"nonce"`

	ExpiresAt uint64 `json:"expiresAt"`
}

// SignedPayment is a payload together with the payer's signature. It is
// carried in the X-Payment header and is untrusted until verified.
type SignedPayment struct {
	Payment   PaymentPayload `json:"payment"`
	Signature Signature      `json:"signature"`
}

// SupportedItem describes one network accepted by this implementation.
type SupportedItem struct {
	X402Version int    `json:"x402Version"`
	Network     string `json:"network"`
	ChainID     uint64 `json:"chainId"`
}

// VerificationResult summarizes a verification attempt.
type VerificationResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Code          string `json:"code,omitempty"`
	Payer         string `json:"payer,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Network       string `json:"network,omitempty"`
	Resource      string `json:"resource,omitempty"`
}
