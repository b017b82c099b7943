package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// Compile-time check that Metrics implements outbound.MetricsRecorder.
var _ outbound.MetricsRecorder = (*Metrics)(nil)

const meterName = "github.com/archon-research/stl-market"

// Metrics implements the MetricsRecorder interface using OpenTelemetry.
type Metrics struct {
	operationDuration metric.Float64Histogram
	operations        metric.Int64Counter
	confirmAttempts   metric.Int64Histogram
}

// NewMetrics creates a recorder on provider, or on the global provider when
// provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	duration, err := meter.Float64Histogram(
		"market_operation_duration_seconds",
		metric.WithDescription("Time from precondition check to confirmation of a market operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create market_operation_duration_seconds histogram: %w", err)
	}

	operations, err := meter.Int64Counter(
		"market_operations_total",
		metric.WithDescription("Market operations by outcome (noop, submitted, error)"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create market_operations_total counter: %w", err)
	}

	attempts, err := meter.Int64Histogram(
		"market_confirmation_attempts",
		metric.WithDescription("Predicate evaluations needed to observe a submitted transaction"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create market_confirmation_attempts histogram: %w", err)
	}

	return &Metrics{
		operationDuration: duration,
		operations:        operations,
		confirmAttempts:   attempts,
	}, nil
}

// RecordOperation records one finished market operation.
func (m *Metrics) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
	m.operations.Add(ctx, 1, attrs)
}

// RecordConfirmationAttempts records how many polls a confirmation took.
func (m *Metrics) RecordConfirmationAttempts(ctx context.Context, operation string, attempts int) {
	m.confirmAttempts.Record(ctx, int64(attempts), metric.WithAttributes(attribute.String("operation", operation)))
}
