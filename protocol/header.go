// Package protocol encodes x402 records into HTTP header values and back.
//
// A header value is standard base64 (with padding) of the record's JSON
// encoding. Decoding validates structure only: a payment with a bad
// signature or the wrong amount decodes fine and is rejected later by the
// verification package.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
)

const (
	// RequirementsHeader carries payment requirements (server to client).
	RequirementsHeader = "X-Payment-Requirements"

	// PaymentHeader carries a signed payment (client to server).
	PaymentHeader = "X-Payment"
)

// requirementsWire mirrors types.PaymentRequirements with pointer fields so
// that missing required members can be told apart from zero values.
type requirementsWire struct {
	Amount      *types.Amount   `json:"amount" validate:"required"`
	Recipient   *common.Address `json:"recipient" validate:"required"`
	Network     *types.Network  `json:"network" validate:"required"`
	Token       *common.Address `json:"token,omitempty"`
	Description *string         `json:"description,omitempty"`
	ExpiresAt   *uint64         `json:"expiresAt,omitempty"`
	Resource    *string         `json:"resource" validate:"required"`
}

type payloadWire struct {
	Amount    *types.Amount   `json:"amount" validate:"required"`
	Recipient *common.Address `json:"recipient" validate:"required"`
	Payer     *common.Address `json:"payer" validate:"required"`
	ChainID   *uint64         `json:"chainId" validate:"required"`
	Token     *common.Address `json:"token,omitempty"`
	Resource  *string         `json:"resource" validate:"required"`
	Nonce     *uint64         `json:"nonce" validate:"required"`
	ExpiresAt *uint64         `json:"expiresAt" validate:"required"`
}

type signedPaymentWire struct {
	Payment   *payloadWire     `json:"payment" validate:"required"`
	Signature *types.Signature `json:"signature" validate:"required"`
}

// EncodeRequirements encodes payment requirements into a header value.
func EncodeRequirements(req *types.PaymentRequirements) (string, error) {
	if req == nil {
		return "", types.NewEncodingError(errors.New("nil payment requirements"))
	}
	return encode(req)
}

// DecodeRequirements decodes a header value produced by EncodeRequirements.
func DecodeRequirements(header string) (*types.PaymentRequirements, error) {
	var wire requirementsWire
	if err := decode(header, &wire); err != nil {
		return nil, err
	}

	return &types.PaymentRequirements{
		Amount:      *wire.Amount,
		Recipient:   *wire.Recipient,
		Network:     *wire.Network,
		Token:       wire.Token,
		Description: wire.Description,
		ExpiresAt:   wire.ExpiresAt,
		Resource:    *wire.Resource,
	}, nil
}

// EncodePayment encodes a signed payment into a header value.
func EncodePayment(payment *types.SignedPayment) (string, error) {
	if payment == nil {
		return "", types.NewEncodingError(errors.New("nil signed payment"))
	}
	return encode(payment)
}

// DecodePayment decodes a header value produced by EncodePayment.
func DecodePayment(header string) (*types.SignedPayment, error) {
	var wire signedPaymentWire
	if err := decode(header, &wire); err != nil {
		return nil, err
	}
	p := wire.Payment
	return &types.SignedPayment{
		Payment: types.PaymentPayload{
			Amount:    *p.Amount,
			Recipient: *p.Recipient,
			Payer:     *p.Payer,
			ChainID:   *p.ChainID,
			Token:     p.Token,
			Resource:  *p.Resource,
			Nonce:     *p.Nonce,
			ExpiresAt: *p.ExpiresAt,
		},
		Signature: *wire.Signature,
	}, nil
}

func encode(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", types.NewEncodingError(err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// decode runs the three decoding stages and stops at the first failure.
func decode(header string, out interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return types.NewInvalidHeaderError(err, "base64 decode failed")
	}

	if !utf8.Valid(raw) {
		return types.NewInvalidHeaderError(errors.New("decoded bytes are not valid UTF-8"), "invalid UTF-8")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return types.NewInvalidHeaderError(err, "JSON parse failed")
	}

	if _, err := utils.ValidateStruct(out); err != nil {
		return types.NewInvalidHeaderError(err, "JSON parse failed")
	}
	return nil
}
