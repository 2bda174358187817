// Package clients pays for x402-protected HTTP resources.
//
// A Client sends a request; if the server answers 402 with an
// X-Payment-Requirements header, the client signs a matching payment and
// retries once with the X-Payment header.
package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vitwit/x402core/logger"
	"github.com/vitwit/x402core/metrics"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
)

// DefaultPaymentTTL is how long a payment stays valid when the
// requirements carry no expiry of their own.
const DefaultPaymentTTL = 5 * time.Minute

type Client struct {
	httpClient *http.Client
	signer     Signer
	maxAmount  *types.Amount
	autoPay    bool
	logger     logger.Logger
	metrics    metrics.Recorder
	now        func() time.Time

	nonce atomic.Uint64
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxAmount caps what the client pays automatically.
func WithMaxAmount(max types.Amount) ClientOption {
	return func(c *Client) { c.maxAmount = &max }
}

// WithAutoPay toggles automatic payment of 402 responses. Enabled by
// default.
func WithAutoPay(enabled bool) ClientOption {
	return func(c *Client) { c.autoPay = enabled }
}

func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) { c.logger = logger.OrNoop(l) }
}

func WithClientMetrics(r metrics.Recorder) ClientOption {
	return func(c *Client) { c.metrics = metrics.OrNoop(r) }
}

// WithClientClock sets the time source for nonces and default expiries.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a paying HTTP client. Nonces start at the current
// unix time in milliseconds and increase by one per payment.
func NewClient(signer Signer, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signer,
		autoPay:    true,
		logger:     logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.nonce.Store(uint64(c.now().UnixMilli()))
	return c
}

// Do sends req. A 402 response is paid and the request retried once when
// auto-pay is on; if the payment is refused (no requirements header,
// amount above the cap, signer failure) the 402 response is returned
// unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired || !c.autoPay {
		return resp, nil
	}

	header, err := c.handle402(req.Context(), resp)
	if err != nil {
		c.logger.Warn("not paying 402 response", map[string]any{
			"url":   req.URL.String(),
			"error": err.Error(),
		})
		return resp, nil
	}

	// Release the 402 connection before retrying.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	retry, err := replay(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set(protocol.PaymentHeader, header)

	return c.httpClient.Do(retry)
}

func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}

// Pay builds and signs a payment answering req and returns the X-Payment
// header value.
func (c *Client) Pay(ctx context.Context, req *types.PaymentRequirements) (string, error) {
	if req == nil {
		return "", &types.X402Error{Code: ErrMissingRequirements, Message: "no payment requirements"}
	}
	if c.maxAmount != nil && req.Amount.Cmp(*c.maxAmount) > 0 {
		return "", &types.X402Error{
			Code:    ErrAmountAboveMax,
			Message: fmt.Sprintf("requested amount %s exceeds maximum %s", req.Amount, c.maxAmount),
			Data:    types.AmountShortfall{Required: req.Amount, Provided: *c.maxAmount},
		}
	}
	if !req.Network.IsValid() {
		return "", &types.X402Error{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("Unsupported network: %q", req.Network.String()),
		}
	}

	now := c.now()
	expiresAt := uint64(now.Add(DefaultPaymentTTL).Unix())
	if req.ExpiresAt != nil {
		if err := utils.ValidateDeadline(*req.ExpiresAt, now); err != nil {
			return "", types.NewPaymentExpiredError(*req.ExpiresAt, uint64(now.Unix()))
		}
		expiresAt = *req.ExpiresAt
	}

	payload := types.NewPayloadFor(req, c.signer.Address(), c.nextNonce(), expiresAt)
	sig, err := c.signer.SignPayment(ctx, &payload)
	if err != nil {
		return "", err
	}

	header, err := protocol.EncodePayment(&types.SignedPayment{Payment: payload, Signature: sig})
	if err != nil {
		return "", err
	}

	c.metrics.IncCounter(metrics.EventPaid, map[string]string{metrics.LabelNetwork: req.Network.String()})
	c.logger.Info("signed payment", map[string]any{
		"amount":   payload.Amount.String(),
		"resource": payload.Resource,
		"network":  req.Network.String(),
		"nonce":    payload.Nonce,
	})
	return header, nil
}

func (c *Client) handle402(ctx context.Context, resp *http.Response) (string, error) {
	reqHeader := resp.Header.Get(protocol.RequirementsHeader)
	if reqHeader == "" {
		return "", &types.X402Error{
			Code:    ErrMissingRequirements,
			Message: fmt.Sprintf("402 response without %s header", protocol.RequirementsHeader),
		}
	}

	requirements, err := protocol.DecodeRequirements(reqHeader)
	if err != nil {
		return "", err
	}
	return c.Pay(ctx, requirements)
}

func (c *Client) nextNonce() uint64 {
	return c.nonce.Add(1)
}

func replay(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, &types.X402Error{
			Code:    ErrBodyNotReplayable,
			Message: "request body cannot be replayed for the paid retry",
		}
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}
