package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402core/metrics"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
	"github.com/vitwit/x402core/verification"
)

const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testPayer      = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testRecipient  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testNow        = int64(1700000000)
)

func testRequirements() types.PaymentRequirements {
	return types.PaymentRequirements{
		Amount:    types.NewAmount(1500000),
		Recipient: common.HexToAddress(testRecipient),
		Network:   types.NetworkBaseSepolia,
	}
}

func testConfig() Config {
	return Config{
		Requirements: Static(testRequirements()),
		Verifier:     verification.NewVerifier(verification.WithClock(func() time.Time { return time.Unix(testNow, 0) })),
		ExemptPaths:  []string{"/health"},
		Decimals:     6,
	}
}

func createTestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payer, ok := PayerFromContext(r.Context())
		if ok {
			w.Header().Set("X-Test-Payer", payer.Hex())
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("premium content"))
	})
}

func paymentHeader(t *testing.T, resource string, mutate func(p *types.PaymentPayload)) string {
	t.Helper()
	req := testRequirements()
	req.Resource = resource
	p := types.NewPayloadFor(&req, common.HexToAddress(testPayer), 1, uint64(testNow+60))
	if mutate != nil {
		mutate(&p)
	}

	key, err := utils.PrivateKeyFromHex(testPrivateKey)
	require.NoError(t, err)
	sig, err := utils.SignHash(p.MessageHash().Bytes(), key)
	require.NoError(t, err)

	header, err := protocol.EncodePayment(&types.SignedPayment{Payment: p, Signature: sig})
	require.NoError(t, err)
	return header
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) PaymentRequired {
	t.Helper()
	var body PaymentRequired
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestMiddlewareNoPayment(t *testing.T) {
	wrapped := Middleware(createTestHandler(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/premium", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	decoded, err := protocol.DecodeRequirements(w.Header().Get(protocol.RequirementsHeader))
	require.NoError(t, err)
	assert.Equal(t, "/api/premium", decoded.Resource)
	assert.Equal(t, types.NewAmount(1500000), decoded.Amount)

	body := decodeBody(t, w)
	assert.Equal(t, ErrPaymentRequired, body.Error)
	assert.Equal(t, "1500000", body.Amount)
	assert.Equal(t, "1.5", body.DisplayAmount)
	assert.Equal(t, "base_sepolia", body.Network)
}

func TestMiddlewareValidPayment(t *testing.T) {
	wrapped := Middleware(createTestHandler(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/premium", nil)
	req.Header.Set(protocol.PaymentHeader, paymentHeader(t, "/api/premium", nil))
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "premium content", w.Body.String())
	assert.Equal(t, testPayer, w.Header().Get(PayerHeader))
	assert.Equal(t, testPayer, w.Header().Get("X-Test-Payer"))
}

func TestMiddlewareRejectedPayments(t *testing.T) {
	tests := []struct {
		name   string
		header func(t *testing.T) string
		code   string
	}{
		{
			name:   "wrong resource",
			header: func(t *testing.T) string { return paymentHeader(t, "/api/other", nil) },
			code:   types.ErrInvalidPayload,
		},
		{
			name: "forged payer",
			header: func(t *testing.T) string {
				return paymentHeader(t, "/api/premium", func(p *types.PaymentPayload) { p.Payer = common.HexToAddress(testRecipient) })
			},
			code: types.ErrInvalidSignature,
		},
		{
			name: "underpaid",
			header: func(t *testing.T) string {
				return paymentHeader(t, "/api/premium", func(p *types.PaymentPayload) { p.Amount = types.NewAmount(1) })
			},
			code: types.ErrInsufficientAmount,
		},
		{
			name: "expired",
			header: func(t *testing.T) string {
				return paymentHeader(t, "/api/premium", func(p *types.PaymentPayload) { p.ExpiresAt = uint64(testNow - 1) })
			},
			code: types.ErrExpiredPayment,
		},
		{
			name:   "malformed",
			header: func(t *testing.T) string { return "not-a-payment" },
			code:   types.ErrInvalidHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Middleware(createTestHandler(), testConfig())

			req := httptest.NewRequest(http.MethodGet, "/api/premium", nil)
			req.Header.Set(protocol.PaymentHeader, tt.header(t))
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			require.Equal(t, http.StatusPaymentRequired, w.Code)
			assert.NotEmpty(t, w.Header().Get(protocol.RequirementsHeader))
			assert.Empty(t, w.Header().Get(PayerHeader))
			body := decodeBody(t, w)
			assert.Equal(t, tt.code, body.Error)
			assert.NotEmpty(t, body.Reason)
		})
	}
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) IncCounter(name string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name+"/"+labels[metrics.LabelCode]]++
}

func (c *countingRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func TestMiddlewareWrongResourceCountsAsRejected(t *testing.T) {
	rec := &countingRecorder{}
	config := testConfig()
	config.Metrics = rec
	config.Verifier = verification.NewVerifier(
		verification.WithMetrics(rec),
		verification.WithClock(func() time.Time { return time.Unix(testNow, 0) }),
	)
	wrapped := Middleware(createTestHandler(), config)

	req := httptest.NewRequest(http.MethodGet, "/api/premium", nil)
	req.Header.Set(protocol.PaymentHeader, paymentHeader(t, "/api/other", nil))
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, 0, rec.counts[metrics.EventVerified+"/"])
	assert.Equal(t, 1, rec.counts[metrics.EventRejected+"/"+types.ErrInvalidPayload])
}

func TestMiddlewareCancelledRequest(t *testing.T) {
	wrapped := Middleware(createTestHandler(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/premium", nil).WithContext(ctx)
	req.Header.Set(protocol.PaymentHeader, paymentHeader(t, "/api/premium", nil))
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, ErrInternal, body.Error)
	assert.NotEmpty(t, body.Reason)
}

func TestMiddlewareExemptPath(t *testing.T) {
	wrapped := Middleware(createTestHandler(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Test-Payer"))
}

func TestMiddlewareRequirementsError(t *testing.T) {
	cfg := testConfig()
	cfg.Requirements = func(*http.Request) (*types.PaymentRequirements, error) {
		return nil, errors.New("price feed down")
	}
	wrapped := Middleware(createTestHandler(), cfg)

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/premium", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ErrInternal, decodeBody(t, w).Error)
}

func TestHandlerAdapter(t *testing.T) {
	wrapped := Handler(testConfig())(createTestHandler())

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/premium", nil))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestStaticKeepsExplicitResource(t *testing.T) {
	req := testRequirements()
	req.Resource = "weather"

	got, err := Static(req)(httptest.NewRequest(http.MethodGet, "/api/weather", nil))
	require.NoError(t, err)
	assert.Equal(t, "weather", got.Resource)
}

func TestPayerFromContextMissing(t *testing.T) {
	_, ok := PayerFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
