package main

import (
	"context"
	"errors"

	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/session"
)

// initTelemetry starts the OTLP log, trace and metric providers unless
// telemetry is switched off. The returned shutdown flushes all of them.
func initTelemetry(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	if !cfg.Telemetry {
		return func(context.Context) error { return nil }, nil
	}

	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}

	for _, start := range []func(context.Context) (func(context.Context) error, error){
		observability.InitLogging,
		observability.InitTracing,
		observability.InitMetrics,
	} {
		stop, err := start(ctx)
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		shutdowns = append(shutdowns, stop)
	}

	return shutdown, nil
}

// initMetrics registers application-specific metric instruments. Add new
// domain InitMetrics calls here as the project grows.
func initMetrics(registry *session.Registry) error {
	if err := session.InitMetrics(); err != nil {
		return err
	}

	return observability.RegisterCollector(registry.Collector())
}
