package clients

import "github.com/vitwit/x402core/types"

const (
	// -----------------------------
	// SIGNER
	// -----------------------------
	ErrSignerUnavailable = "SIGNER_UNAVAILABLE"
	ErrPayerMismatch     = "PAYER_MISMATCH"

	// -----------------------------
	// AUTO-PAY
	// -----------------------------
	ErrMissingRequirements = "MISSING_REQUIREMENTS"
	ErrAmountAboveMax      = "AMOUNT_ABOVE_MAX"
	ErrBodyNotReplayable   = "BODY_NOT_REPLAYABLE"
)

// Sentinels for errors.Is.
var (
	ErrKindSignerUnavailable   = &types.X402Error{Code: ErrSignerUnavailable}
	ErrKindPayerMismatch       = &types.X402Error{Code: ErrPayerMismatch}
	ErrKindMissingRequirements = &types.X402Error{Code: ErrMissingRequirements}
	ErrKindAmountAboveMax      = &types.X402Error{Code: ErrAmountAboveMax}
	ErrKindBodyNotReplayable   = &types.X402Error{Code: ErrBodyNotReplayable}
)
