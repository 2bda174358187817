// Package middleware puts x402 payments in front of net/http handlers.
//
// Requests without a valid X-Payment header get a 402 response carrying
// the X-Payment-Requirements header. Verified requests reach the wrapped
// handler with the payer's address in their context.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/x402core/logger"
	"github.com/vitwit/x402core/metrics"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
	"github.com/vitwit/x402core/verification"
)

// PayerHeader is set on responses to verified requests.
const PayerHeader = "X-Payment-Payer"

// Config holds the configuration for the payment middleware
type Config struct {
	// Requirements returns what the request must pay. Required.
	Requirements func(r *http.Request) (*types.PaymentRequirements, error)

	// Verifier checks payments. Defaults to verification.NewVerifier().
	Verifier *verification.Verifier

	// ExemptPaths lists path prefixes that don't require payment
	ExemptPaths []string

	// Decimals of the payment asset. When positive, 402 bodies include a
	// human-readable amount.
	Decimals int

	Logger  logger.Logger
	Metrics metrics.Recorder
}

// PaymentRequired is the JSON body of a 402 response.
type PaymentRequired struct {
	Error         string `json:"error"`
	Reason        string `json:"reason"`
	Amount        string `json:"amount,omitempty"`
	DisplayAmount string `json:"displayAmount,omitempty"`
	Network       string `json:"network,omitempty"`
	Resource      string `json:"resource,omitempty"`
}

// Error codes used in 402 bodies besides the types.Err* codes.
const (
	ErrPaymentRequired = "PAYMENT_REQUIRED"
	ErrInternal        = "INTERNAL_ERROR"
)

type payerKey struct{}

// PayerFromContext returns the verified payer stored by Middleware.
func PayerFromContext(ctx context.Context) (common.Address, bool) {
	payer, ok := ctx.Value(payerKey{}).(common.Address)
	return payer, ok
}

// Middleware wraps next so that it only runs for paid requests.
func Middleware(next http.Handler, config Config) http.Handler {
	if config.Verifier == nil {
		config.Verifier = verification.NewVerifier(
			verification.WithLogger(config.Logger),
			verification.WithMetrics(config.Metrics),
		)
	}
	log := logger.OrNoop(config.Logger).Named("middleware")
	rec := metrics.OrNoop(config.Metrics)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isExemptPath(r.URL.Path, config.ExemptPaths) {
			next.ServeHTTP(w, r)
			return
		}

		req, err := config.Requirements(r)
		if err != nil || req == nil {
			log.Error("failed to build payment requirements", map[string]any{"path": r.URL.Path, "error": err})
			writeJSON(w, http.StatusInternalServerError, PaymentRequired{Error: ErrInternal, Reason: "payment requirements unavailable"})
			return
		}

		reqHeader, err := protocol.EncodeRequirements(req)
		if err != nil {
			log.Error("failed to encode payment requirements", map[string]any{"path": r.URL.Path, "error": err.Error()})
			writeJSON(w, http.StatusInternalServerError, PaymentRequired{Error: ErrInternal, Reason: "payment requirements unavailable"})
			return
		}

		payment := r.Header.Get(protocol.PaymentHeader)
		if payment == "" {
			rec.IncCounter(metrics.EventPaymentAsked, map[string]string{metrics.LabelNetwork: req.Network.String()})
			sendPaymentRequired(w, reqHeader, req, config.Decimals, ErrPaymentRequired, protocol.PaymentHeader+" header is missing")
			return
		}

		signed, err := protocol.DecodePayment(payment)
		if err != nil {
			log.Warn("malformed payment header", map[string]any{"path": r.URL.Path, "error": err.Error()})
			sendPaymentRequired(w, reqHeader, req, config.Decimals, types.Code(err), err.Error())
			return
		}

		// The signature binds the payload's resource, not the one being
		// served, so a payment for one path must not unlock another.
		if signed.Payment.Resource != req.Resource {
			log.Warn("payment for another resource", map[string]any{
				"paid":      signed.Payment.Resource,
				"requested": req.Resource,
			})
			rec.IncCounter(metrics.EventRejected, map[string]string{
				metrics.LabelNetwork: req.Network.String(),
				metrics.LabelCode:    types.ErrInvalidPayload,
			})
			sendPaymentRequired(w, reqHeader, req, config.Decimals, types.ErrInvalidPayload,
				"Invalid payload: payment is for resource "+signed.Payment.Resource)
			return
		}

		result, err := config.Verifier.Verify(r.Context(), signed, req)
		if err != nil {
			code := result.Code
			if code == "" {
				code = ErrInternal
			}
			sendPaymentRequired(w, reqHeader, req, config.Decimals, code, result.InvalidReason)
			return
		}

		payer := common.HexToAddress(result.Payer)
		log.Info("payment accepted", map[string]any{
			"payer":    result.Payer,
			"amount":   result.Amount,
			"resource": req.Resource,
		})

		w.Header().Set(PayerHeader, result.Payer)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), payerKey{}, payer)))
	})
}

// Handler adapts Middleware to the func(http.Handler) http.Handler shape
// used by routers such as chi.
func Handler(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Middleware(next, config)
	}
}

// Static returns a Config.Requirements func that always demands req. An
// empty req.Resource is filled with the request path.
func Static(req types.PaymentRequirements) func(*http.Request) (*types.PaymentRequirements, error) {
	return func(r *http.Request) (*types.PaymentRequirements, error) {
		out := req
		if out.Resource == "" {
			out.Resource = r.URL.Path
		}
		return &out, nil
	}
}

func isExemptPath(path string, exemptPaths []string) bool {
	for _, exemptPath := range exemptPaths {
		if strings.HasPrefix(path, exemptPath) {
			return true
		}
	}
	return false
}

func sendPaymentRequired(w http.ResponseWriter, reqHeader string, req *types.PaymentRequirements, decimals int, code, reason string) {
	body := PaymentRequired{
		Error:    code,
		Reason:   reason,
		Amount:   req.Amount.String(),
		Network:  req.Network.String(),
		Resource: req.Resource,
	}
	if decimals > 0 {
		body.DisplayAmount = utils.FormatAmount(req.Amount, decimals)
	}

	w.Header().Set(protocol.RequirementsHeader, reqHeader)
	writeJSON(w, http.StatusPaymentRequired, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
