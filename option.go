package x402core

import (
	"time"

	"github.com/vitwit/x402core/logger"
	"github.com/vitwit/x402core/metrics"
)

type Option func(*X402)

func WithLogger(l logger.Logger) Option {
	return func(x *X402) {
		x.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(x *X402) {
		x.metrics = metrics.OrNoop(r)
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(x *X402) {
		if now != nil {
			x.now = now
		}
	}
}
