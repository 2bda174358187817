package types

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SigningMessage returns the canonical text a payer signs. Field order and
// labels are part of the wire protocol; changing them invalidates every
// signature produced by existing clients. The token is not covered.
func (p *PaymentPayload) SigningMessage() string {
	var b strings.Builder
	b.WriteString("x402 Payment")
	b.WriteString("\nAmount: ")
	b.WriteString(p.Amount.String())
	b.WriteString("\nRecipient: ")
	b.WriteString(p.Recipient.Hex())
	b.WriteString("\nPayer: ")
	b.WriteString(p.Payer.Hex())
	b.WriteString("\nChainId: ")
	b.WriteString(strconv.FormatUint(p.ChainID, 10))
	b.WriteString("\nResource: ")
	b.WriteString(p.Resource)
	b.WriteString("\nNonce: ")
	b.WriteString(strconv.FormatUint(p.Nonce, 10))
	b.WriteString("\nExpires: ")
	b.WriteString(strconv.FormatUint(p.ExpiresAt, 10))
	return b.String()
}

// MessageHash returns keccak256 of SigningMessage. This is the digest the
// signature is computed over, without any EIP-191 prefix.
//
// TODO: replace with an EIP-712 TransferWithAuthorization digest once
// wallet-facing clients agree on the domain; this preimage is not what
// wallets display.
func (p *PaymentPayload) MessageHash() common.Hash {
	return crypto.Keccak256Hash([]byte(p.SigningMessage()))
}

// Network returns the network matching the payload's chain id.
func (p *PaymentPayload) Network() (Network, bool) {
	return NetworkFromChainID(p.ChainID)
}

// IsExpired reports whether the payload expired before now (unix seconds).
// A payload expiring exactly at now is still valid.
func (p *PaymentPayload) IsExpired(now int64) bool {
	if now < 0 {
		return false
	}
	return p.ExpiresAt < uint64(now)
}

// NewPayloadFor builds the payload that answers req: same amount,
// recipient, token and resource, on req's chain.
func NewPayloadFor(req *PaymentRequirements, payer common.Address, nonce, expiresAt uint64) PaymentPayload {
	return PaymentPayload{
		Amount:    req.Amount,
		Recipient: req.Recipient,
		Payer:     payer,
		ChainID:   req.ChainID(),
		Token:     req.Token,
		Resource:  req.Resource,
		Nonce:     nonce,
		ExpiresAt: expiresAt,
	}
}
