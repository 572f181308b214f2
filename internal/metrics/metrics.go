// Package metrics exposes the core's operational counters as Prometheus
// instruments, replacing the teacher's atomic-counter Metrics/Observer pair
// (sync/atomic counters plus a bucketed latency histogram recomputed by
// hand, _examples/ehrlich-b-go-ublk/metrics.go) with the library every
// Prometheus-instrumented Go service in the ecosystem uses for the same
// shape of data: per-op counters, byte counters, error counters, and a
// latency histogram, all scraped rather than polled. It lives below the
// root package, alongside internal/oerr and internal/constants, so that
// internal/dispatch can depend on it directly; the root package re-exports
// it as osd.Metrics the same way it re-exports oerr.Error.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of Prometheus instruments one Dispatcher records
// against, mirroring the teacher's per-op ObserveRead/ObserveWrite/
// ObserveDiscard/ObserveFlush shape collapsed into one ObserveOp call keyed
// by opcode.
type Metrics struct {
	ops      *prometheus.CounterVec
	opErrors *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	objects prometheus.Gauge
}

// New constructs a Metrics registered against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel test packages.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osd",
			Name:      "ops_total",
			Help:      "Total ops dispatched, by opcode.",
		}, []string{"opcode"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osd",
			Name:      "op_errors_total",
			Help:      "Total ops that returned a non-zero rval, by opcode and error kind.",
		}, []string{"opcode", "kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osd",
			Name:      "bytes_total",
			Help:      "Total bytes transferred, by opcode.",
		}, []string{"opcode"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "osd",
			Name:      "op_latency_seconds",
			Help:      "Per-op dispatch latency.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10), // 1us .. ~262ms
		}, []string{"opcode"}),
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osd",
			Name:      "objects",
			Help:      "Current number of objects held in the store.",
		}),
	}
	reg.MustRegister(m.ops, m.opErrors, m.bytes, m.latency, m.objects)
	return m
}

// ObserveOp records one dispatched op: its opcode, the bytes it moved, the
// time it took, and (if it failed) the error kind.
func (m *Metrics) ObserveOp(opcode string, bytesMoved int, seconds float64, errKind string) {
	m.ops.WithLabelValues(opcode).Inc()
	m.latency.WithLabelValues(opcode).Observe(seconds)
	if bytesMoved > 0 {
		m.bytes.WithLabelValues(opcode).Add(float64(bytesMoved))
	}
	if errKind != "" {
		m.opErrors.WithLabelValues(opcode, errKind).Inc()
	}
}

// SetObjectCount updates the objects gauge to the store's current count.
func (m *Metrics) SetObjectCount(n int) {
	m.objects.Set(float64(n))
}
