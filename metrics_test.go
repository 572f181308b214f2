package osd

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// gather returns the scraped sample families from reg, exercising Metrics
// purely through its exported surface and the Prometheus registry it was
// built against (the detailed per-instrument assertions live alongside the
// unexported fields in internal/metrics).
func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestNewMetricsRegistersAndObserveOpIsVisibleOnGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveOp("WRITE", 1024, 0.001, "")

	families := gather(t, reg)
	require.Contains(t, families, "osd_ops_total")
	require.Contains(t, families, "osd_bytes_total")
	require.Contains(t, families, "osd_op_latency_seconds")
}

func TestSetObjectCountIsVisibleOnGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetObjectCount(7)

	families := gather(t, reg)
	require.Contains(t, families, "osd_objects")
	require.Equal(t, float64(7), families["osd_objects"].GetMetric()[0].GetGauge().GetValue())
}
