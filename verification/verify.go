// Package verification checks signed x402 payments against the
// requirements a resource server published.
package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/x402core/logger"
	"github.com/vitwit/x402core/metrics"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
)

// VerifyPayment checks payment against req using the current time and
// returns the recovered payer address.
func VerifyPayment(payment *types.SignedPayment, req *types.PaymentRequirements) (common.Address, error) {
	return VerifyPaymentAt(payment, req, time.Now())
}

// VerifyPaymentAt is VerifyPayment with an explicit clock.
//
// Checks run in a fixed order and the first failure is returned:
// expiry, amount, recipient, chain id, signature recovery, payer match.
// Nonce reuse is not tracked here.
func VerifyPaymentAt(payment *types.SignedPayment, req *types.PaymentRequirements, now time.Time) (common.Address, error) {
	if payment == nil {
		return common.Address{}, &types.X402Error{Code: types.ErrInvalidPayload, Message: "Invalid payload: nil signed payment"}
	}
	if req == nil {
		return common.Address{}, &types.X402Error{Code: types.ErrInvalidRequirements, Message: "Invalid requirements: nil payment requirements"}
	}
	p := &payment.Payment

	if p.IsExpired(now.Unix()) {
		return common.Address{}, types.NewPaymentExpiredError(p.ExpiresAt, uint64(now.Unix()))
	}

	if p.Amount.Cmp(req.Amount) < 0 {
		return common.Address{}, types.NewInsufficientAmountError(req.Amount, p.Amount)
	}

	if p.Recipient != req.Recipient {
		return common.Address{}, types.NewInvalidSignatureError("recipient mismatch", nil)
	}

	if !req.Network.IsValid() {
		return common.Address{}, &types.X402Error{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("Unsupported network: %q", req.Network.String()),
		}
	}
	if expected := req.Network.ChainID(); p.ChainID != expected {
		return common.Address{}, types.NewUnsupportedNetworkError(expected, p.ChainID)
	}

	digest := p.MessageHash()
	recovered, err := utils.RecoverAddress(digest.Bytes(), payment.Signature)
	if err != nil {
		return common.Address{}, err
	}

	if recovered != p.Payer {
		return common.Address{}, types.NewInvalidSignatureError("recovered address does not match payer", nil)
	}
	return recovered, nil
}

// Request pairs a signed payment with the requirements it answers.
type Request struct {
	Payment      *types.SignedPayment
	Requirements *types.PaymentRequirements
}

// Verifier wraps VerifyPaymentAt with logging, metrics and an injectable
// clock. It holds no per-payment state and is safe for concurrent use.
type Verifier struct {
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*Verifier)

func WithLogger(l logger.Logger) Option {
	return func(v *Verifier) { v.logger = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(v *Verifier) { v.metrics = metrics.OrNoop(r) }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks payment against req. The returned result is never nil;
// on rejection it carries the error code and message and err is the
// underlying *types.X402Error.
func (v *Verifier) Verify(ctx context.Context, payment *types.SignedPayment, req *types.PaymentRequirements) (*types.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return &types.VerificationResult{InvalidReason: err.Error()}, err
	}

	start := time.Now()
	result := newResult(payment, req)
	labels := map[string]string{metrics.LabelNetwork: result.Network}

	payer, err := VerifyPaymentAt(payment, req, v.now())
	v.metrics.ObserveLatency("verify", time.Since(start), labels)
	if err != nil {
		result.InvalidReason = err.Error()
		result.Code = types.Code(err)
		labels[metrics.LabelCode] = result.Code
		v.metrics.IncCounter(metrics.EventRejected, labels)
		v.logger.Warn("payment rejected", map[string]any{
			"code":     result.Code,
			"reason":   result.InvalidReason,
			"resource": result.Resource,
			"network":  result.Network,
		})
		return result, err
	}

	result.IsValid = true
	result.Payer = payer.Hex()
	v.metrics.IncCounter(metrics.EventVerified, labels)
	v.logger.Debug("payment verified", map[string]any{
		"payer":    result.Payer,
		"amount":   result.Amount,
		"resource": result.Resource,
		"network":  result.Network,
	})
	return result, nil
}

// VerifyHeader decodes an X-Payment header value and verifies it.
func (v *Verifier) VerifyHeader(ctx context.Context, header string, req *types.PaymentRequirements) (*types.VerificationResult, error) {
	payment, err := protocol.DecodePayment(header)
	if err != nil {
		result := newResult(nil, req)
		result.InvalidReason = err.Error()
		result.Code = types.Code(err)
		v.metrics.IncCounter(metrics.EventRejected, map[string]string{
			metrics.LabelNetwork: result.Network,
			metrics.LabelCode:    result.Code,
		})
		v.logger.Warn("malformed payment header", map[string]any{"reason": result.InvalidReason})
		return result, err
	}
	return v.Verify(ctx, payment, req)
}

// BatchVerify verifies several payments concurrently. Results are returned
// in request order; a rejected payment is reported in its result, not as
// an error. The error is non-nil only when ctx ends before all checks
// complete.
func (v *Verifier) BatchVerify(ctx context.Context, reqs []Request) ([]*types.VerificationResult, error) {
	results := make([]*types.VerificationResult, len(reqs))

	type verificationResult struct {
		index  int
		result *types.VerificationResult
	}

	resultChan := make(chan verificationResult, len(reqs))

	for i, r := range reqs {
		go func(index int, r Request) {
			result, _ := v.Verify(ctx, r.Payment, r.Requirements)
			resultChan <- verificationResult{index: index, result: result}
		}(i, r)
	}

	for i := 0; i < len(reqs); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-resultChan:
			results[res.index] = res.result
		}
	}

	return results, nil
}

func newResult(payment *types.SignedPayment, req *types.PaymentRequirements) *types.VerificationResult {
	result := &types.VerificationResult{}
	if req != nil {
		result.Network = req.Network.String()
		result.Resource = req.Resource
	}
	if payment != nil {
		result.Amount = payment.Payment.Amount.String()
		if result.Resource == "" {
			result.Resource = payment.Payment.Resource
		}
	}
	return result
}
