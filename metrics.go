package osd

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/behrlich/go-osd/internal/metrics"
)

// Metrics re-exports internal/metrics.Metrics, the same way errors.go
// re-exports oerr.Error: the concrete type lives below the root package so
// internal/dispatch can depend on it without an import cycle back through
// osd.
type Metrics = metrics.Metrics

// NewMetrics constructs a Metrics registered against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel test packages.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return metrics.New(reg)
}
