package outbound

import (
	"context"
	"time"
)

// MetricsRecorder provides an interface for recording application metrics.
// This allows the application layer to record metrics without depending on
// specific telemetry implementations.
type MetricsRecorder interface {
	// RecordOperation records one market operation call. status is one of
	// "submitted", "noop" or "error".
	RecordOperation(ctx context.Context, operation, status string, duration time.Duration)

	// RecordConfirmationAttempts records how many polls a confirmation took.
	RecordConfirmationAttempts(ctx context.Context, operation string, attempts int)
}
