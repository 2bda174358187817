// Package metrics records x402 events. Recorders must be safe for
// concurrent use.
package metrics

import "time"

// Event names passed to IncCounter.
const (
	EventVerified     = "payment_verified"
	EventRejected     = "payment_rejected"
	EventPaid         = "payment_sent"
	EventPaymentAsked = "payment_required"
)

// Label keys understood by the Prometheus recorder.
const (
	LabelNetwork = "network"
	LabelCode    = "code"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
