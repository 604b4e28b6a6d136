// Package source provides the metric sources the overlay counter is fed from.
package source

import "context"

// MetricSource fetches the single integer metric displayed on the overlay.
type MetricSource interface {
	FetchMetric(ctx context.Context) (int, error)
}

// Func adapts a plain function to MetricSource.
type Func func(ctx context.Context) (int, error)

func (f Func) FetchMetric(ctx context.Context) (int, error) {
	return f(ctx)
}
