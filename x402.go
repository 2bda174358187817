// Package x402core implements the core of the x402 payment protocol for
// EVM networks: building payment requirements, encoding them into HTTP
// headers and verifying the signed payments clients send back.
//
// A resource server typically does:
//
//	x := x402core.New()
//	req, _ := x.NewRequirements(x402core.RequirementsParams{...})
//	header, _ := x.EncodeRequirements(req)
//	// ... respond 402 with the header, then on retry:
//	payer, err := x.VerifySignedPayment(r.Header.Get("X-Payment"), req)
package x402core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vitwit/x402core/logger"
	"github.com/vitwit/x402core/metrics"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
	"github.com/vitwit/x402core/verification"
)

// Version information
const (
	Version         = "0.1.0"
	ProtocolVersion = types.X402Version1
)

// X402 is the main struct that provides all x402 functionality.
type X402 struct {
	logger   logger.Logger
	metrics  metrics.Recorder
	now      func() time.Time
	verifier *verification.Verifier
}

// New creates a new X402 instance.
func New(opts ...Option) *X402 {
	x := &X402{
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	x.verifier = verification.NewVerifier(
		verification.WithLogger(x.logger.Named("verifier")),
		verification.WithMetrics(x.metrics),
		verification.WithClock(x.now),
	)
	return x
}

// RequirementsParams are the string-typed inputs to NewRequirements.
type RequirementsParams struct {
	Amount      string `validate:"required,x402amount"`
	Recipient   string `validate:"required,eth_addr"`
	Network     string `validate:"required,x402network"`
	Token       string `validate:"omitempty,eth_addr"`
	Description string
	ExpiresAt   uint64
	Resource    string
}

// PayloadParams are the string-typed inputs to NewPayload.
type PayloadParams struct {
	Amount    string `validate:"required,x402amount"`
	Recipient string `validate:"required,eth_addr"`
	Payer     string `validate:"required,eth_addr"`
	ChainID   uint64
	Token     string `validate:"omitempty,eth_addr"`
	Resource  string
	Nonce     uint64
	ExpiresAt uint64
}

// NewRequirements validates p and builds payment requirements. A malformed
// address yields an INVALID_ADDRESS error; anything else that fails
// validation yields INVALID_REQUIREMENTS.
func (x *X402) NewRequirements(p RequirementsParams) (*types.PaymentRequirements, error) {
	if err := checkParams(&p, types.ErrInvalidRequirements); err != nil {
		return nil, err
	}

	amount, err := types.ParseAmount(p.Amount)
	if err != nil {
		return nil, invalid(types.ErrInvalidRequirements, err)
	}
	recipient, err := types.ParseAddress("recipient", p.Recipient)
	if err != nil {
		return nil, err
	}
	network, err := types.ParseNetwork(p.Network)
	if err != nil {
		return nil, invalid(types.ErrInvalidRequirements, err)
	}
	token, err := types.ParseOptionalAddress("token", p.Token)
	if err != nil {
		return nil, err
	}

	req := &types.PaymentRequirements{
		Amount:    amount,
		Recipient: recipient,
		Network:   network,
		Token:     token,
		Resource:  p.Resource,
	}
	if p.Description != "" {
		desc := p.Description
		req.Description = &desc
	}
	if p.ExpiresAt != 0 {
		exp := p.ExpiresAt
		req.ExpiresAt = &exp
	}
	return req, nil
}

// NewPayload validates p and builds an unsigned payment payload.
func (x *X402) NewPayload(p PayloadParams) (*types.PaymentPayload, error) {
	if err := checkParams(&p, types.ErrInvalidPayload); err != nil {
		return nil, err
	}

	amount, err := types.ParseAmount(p.Amount)
	if err != nil {
		return nil, invalid(types.ErrInvalidPayload, err)
	}
	recipient, err := types.ParseAddress("recipient", p.Recipient)
	if err != nil {
		return nil, err
	}
	payer, err := types.ParseAddress("payer", p.Payer)
	if err != nil {
		return nil, err
	}
	token, err := types.ParseOptionalAddress("token", p.Token)
	if err != nil {
		return nil, err
	}

	return &types.PaymentPayload{
		Amount:    amount,
		Recipient: recipient,
		Payer:     payer,
		ChainID:   p.ChainID,
		Token:     token,
		Resource:  p.Resource,
		Nonce:     p.Nonce,
		ExpiresAt: p.ExpiresAt,
	}, nil
}

func (x *X402) EncodeRequirements(req *types.PaymentRequirements) (string, error) {
	return protocol.EncodeRequirements(req)
}

func (x *X402) DecodeRequirements(header string) (*types.PaymentRequirements, error) {
	return protocol.DecodeRequirements(header)
}

func (x *X402) EncodePayment(payment *types.SignedPayment) (string, error) {
	return protocol.EncodePayment(payment)
}

func (x *X402) DecodePayment(header string) (*types.SignedPayment, error) {
	return protocol.DecodePayment(header)
}

// VerifySignedPayment decodes an X-Payment header value, verifies it
// against req and returns the payer's checksummed address.
func (x *X402) VerifySignedPayment(header string, req *types.PaymentRequirements) (string, error) {
	result, err := x.verifier.VerifyHeader(context.Background(), header, req)
	if err != nil {
		return "", err
	}
	return result.Payer, nil
}

// Verify verifies a decoded payment against requirements.
func (x *X402) Verify(ctx context.Context, payment *types.SignedPayment, req *types.PaymentRequirements) (*types.VerificationResult, error) {
	return x.verifier.Verify(ctx, payment, req)
}

// BatchVerify verifies multiple payments concurrently.
func (x *X402) BatchVerify(ctx context.Context, reqs []verification.Request) ([]*types.VerificationResult, error) {
	if len(reqs) == 0 {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: "Invalid payload: no payments to verify",
		}
	}
	return x.verifier.BatchVerify(ctx, reqs)
}

// ChainIDForNetwork returns the chain id of a network name such as "base"
// or "base_sepolia".
func ChainIDForNetwork(name string) (uint64, error) {
	n, err := types.ParseNetwork(name)
	if err != nil {
		return 0, &types.X402Error{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("Unsupported network: %s", name),
			Err:     err,
		}
	}
	return n.ChainID(), nil
}

// NetworkForChainID returns the canonical network name for a chain id.
func NetworkForChainID(chainID uint64) (string, error) {
	n, ok := types.NetworkFromChainID(chainID)
	if !ok {
		return "", &types.X402Error{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("Unsupported network: chain id %d", chainID),
		}
	}
	return n.String(), nil
}

// Supported lists every network this implementation accepts.
func Supported() []types.SupportedItem {
	networks := types.SupportedNetworks()
	items := make([]types.SupportedItem, 0, len(networks))
	for _, n := range networks {
		items = append(items, types.SupportedItem{
			X402Version: int(ProtocolVersion),
			Network:     n.String(),
			ChainID:     n.ChainID(),
		})
	}
	return items
}

func checkParams(params interface{}, code string) error {
	fieldErrs, err := utils.ValidateStruct(params)
	if err == nil {
		return nil
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "eth_addr" {
			return types.NewInvalidAddressError(strings.ToLower(fe.Field()), fmt.Sprint(fe.Value()))
		}
	}
	return invalid(code, err)
}

func invalid(code string, err error) *types.X402Error {
	prefix := "Invalid payload"
	if code == types.ErrInvalidRequirements {
		prefix = "Invalid requirements"
	}
	return &types.X402Error{
		Code:    code,
		Message: fmt.Sprintf("%s: %v", prefix, err),
		Err:     err,
	}
}
