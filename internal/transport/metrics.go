package transport

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lensvault/lensvault/errs"
)

var (
	attemptCounter   metric.Int64Counter
	attemptCounterMu sync.Once
)

// recordAttempt counts each HTTP attempt by host and outcome. Uses the global
// meter provider, so it is a noop until telemetry is initialised.
func recordAttempt(ctx context.Context, host string, failure *errs.E) {
	attemptCounterMu.Do(func() {
		meter := otel.Meter("lensvault/transport")
		counter, err := meter.Int64Counter("lensvault.transport.attempts",
			metric.WithDescription("HTTP attempts issued by the politeness transport"))
		if err == nil {
			attemptCounter = counter
		}
	})
	if attemptCounter == nil {
		return
	}
	outcome := "ok"
	if failure != nil {
		outcome = string(failure.Code)
	}
	attemptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("host", host),
		attribute.String("outcome", outcome),
	))
}
