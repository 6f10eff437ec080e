package session

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metric instruments, initialized once via InitMetrics().
var (
	actionCounter      metric.Int64Counter
	actionHistogram    metric.Float64Histogram
	calculationCounter metric.Int64Counter
	errorCounter       metric.Int64Counter
	resultGauge        metric.Float64Gauge
)

// InitMetrics registers the OTel instruments for calculator sessions.
// Call this once at startup (after observability.InitMetrics).
func InitMetrics() error {
	meter := otel.Meter("calculator")

	var err error

	actionCounter, err = meter.Int64Counter("calculator.actions.total",
		metric.WithDescription("Total number of keypad actions applied"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return fmt.Errorf("creating action counter: %w", err)
	}

	actionHistogram, err = meter.Float64Histogram("calculator.action.duration",
		metric.WithDescription("Duration of keypad actions in milliseconds, including history persistence"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50),
	)
	if err != nil {
		return fmt.Errorf("creating action histogram: %w", err)
	}

	calculationCounter, err = meter.Int64Counter("calculator.calculations.total",
		metric.WithDescription("Total number of resolved operations, chained steps included"),
		metric.WithUnit("{calculation}"),
	)
	if err != nil {
		return fmt.Errorf("creating calculation counter: %w", err)
	}

	errorCounter, err = meter.Int64Counter("calculator.errors.total",
		metric.WithDescription("Total number of calculator errors, division by zero included"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	resultGauge, err = meter.Float64Gauge("calculator.last_result",
		metric.WithDescription("The result of the last completed calculation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating result gauge: %w", err)
	}

	return nil
}
