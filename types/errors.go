package types

import (
	"errors"
	"fmt"
)

// X402Error is the error type returned by every operation in this module.
// Code identifies the failure kind; Message is safe to show to a caller.
type X402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Err     error       `json:"-"`
}

func (e *X402Error) Error() string {
	return e.Message
}

func (e *X402Error) Unwrap() error {
	return e.Err
}

// Is matches any *X402Error carrying the same code, so the sentinels below
// work with errors.Is.
func (e *X402Error) Is(target error) bool {
	t, ok := target.(*X402Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	ErrInvalidHeader       = "INVALID_HEADER"
	ErrInvalidSignature    = "INVALID_SIGNATURE"
	ErrInvalidAddress      = "INVALID_ADDRESS"
	ErrEncoding            = "ENCODING_ERROR"
	ErrExpiredPayment      = "EXPIRED_PAYMENT"
	ErrInsufficientAmount  = "INSUFFICIENT_AMOUNT"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrInvalidRequirements = "INVALID_REQUIREMENTS"
	ErrInvalidPayload      = "INVALID_PAYLOAD"
)

// Sentinels for errors.Is.
var (
	ErrKindInvalidHeader       = &X402Error{Code: ErrInvalidHeader}
	ErrKindInvalidSignature    = &X402Error{Code: ErrInvalidSignature}
	ErrKindInvalidAddress      = &X402Error{Code: ErrInvalidAddress}
	ErrKindEncoding            = &X402Error{Code: ErrEncoding}
	ErrKindPaymentExpired      = &X402Error{Code: ErrExpiredPayment}
	ErrKindInsufficientAmount  = &X402Error{Code: ErrInsufficientAmount}
	ErrKindUnsupportedNetwork  = &X402Error{Code: ErrUnsupportedNetwork}
	ErrKindInvalidRequirements = &X402Error{Code: ErrInvalidRequirements}
	ErrKindInvalidPayload      = &X402Error{Code: ErrInvalidPayload}
)

// AmountShortfall is attached to INSUFFICIENT_AMOUNT errors.
type AmountShortfall struct {
	Required Amount `json:"required"`
	Provided Amount `json:"provided"`
}

// Code returns the X402Error code carried by err, or "" if there is none.
func Code(err error) string {
	var xe *X402Error
	if errors.As(err, &xe) {
		return xe.Code
	}
	return ""
}

func NewInvalidHeaderError(cause error, stage string) *X402Error {
	return &X402Error{
		Code:    ErrInvalidHeader,
		Message: fmt.Sprintf("Invalid x402 header format: %s: %v", stage, cause),
		Err:     cause,
	}
}

func NewInvalidSignatureError(reason string, cause error) *X402Error {
	msg := "Invalid signature: " + reason
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &X402Error{
		Code:    ErrInvalidSignature,
		Message: msg,
		Err:     cause,
	}
}

func NewInvalidAddressError(field, value string) *X402Error {
	return &X402Error{
		Code:    ErrInvalidAddress,
		Message: fmt.Sprintf("Invalid address: %s %q is not a 0x-prefixed 20-byte hex address", field, value),
	}
}

func NewEncodingError(cause error) *X402Error {
	return &X402Error{
		Code:    ErrEncoding,
		Message: fmt.Sprintf("Encoding error: %v", cause),
		Err:     cause,
	}
}

func NewPaymentExpiredError(expiresAt, now uint64) *X402Error {
	return &X402Error{
		Code:    ErrExpiredPayment,
		Message: "Payment expired",
		Data:    map[string]uint64{"expiresAt": expiresAt, "now": now},
	}
}

func NewInsufficientAmountError(required, provided Amount) *X402Error {
	return &X402Error{
		Code:    ErrInsufficientAmount,
		Message: fmt.Sprintf("Insufficient amount: required %s, got %s", required, provided),
		Data:    AmountShortfall{Required: required, Provided: provided},
	}
}

func NewUnsupportedNetworkError(expected, actual uint64) *X402Error {
	return &X402Error{
		Code:    ErrUnsupportedNetwork,
		Message: fmt.Sprintf("Unsupported network: expected chain %d, got %d", expected, actual),
	}
}
