// Package alert delivers the advisory fraud alert signal.
package alert

import (
	"context"

	"github.com/cnoret/fraudpipe/internal/logger"
	"github.com/cnoret/fraudpipe/internal/metrics"
)

// Signal is one fired alert. It is observational: consumers must never
// influence whether the triggering write happened.
type Signal struct {
	TransactionID string
	Probability   float64
	Amount        float64
}

// Notifier receives alert signals. Implementations must not block the
// pipeline for long; errors are logged and dropped by the caller.
type Notifier interface {
	Notify(ctx context.Context, sig Signal) error
}

// LogNotifier raises alerts as structured warning logs, the shape the
// on-call tooling scrapes for.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(ctx context.Context, sig Signal) error {
	log := logger.FromContext(ctx)
	log.Warn().
		Str("transaction_id", sig.TransactionID).
		Float64("probability", sig.Probability).
		Float64("amount", sig.Amount).
		Msg("FRAUD ALERT")
	metrics.AlertsFired.Inc()
	return nil
}
