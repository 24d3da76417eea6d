package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetric(metrics []Metric, name string, labels map[string]string) *Metric {
	for i := range metrics {
		if metricKey(metrics[i].Name, metrics[i].Labels) == metricKey(name, labels) {
			return &metrics[i]
		}
	}
	return nil
}

func TestIncrementCounter(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("events_total", nil, "Events processed")
	r.IncrementCounter("events_total", nil, "Events processed")
	r.IncrementCounter("events_total", nil, "Events processed")

	snapshot := r.Snapshot()
	counters := snapshot["counters"].([]Metric)

	metric := findMetric(counters, "events_total", nil)
	require.NotNil(t, metric)
	assert.Equal(t, float64(3), metric.Value)
	assert.Equal(t, "Events processed", metric.Description)
}

func TestCountersWithDifferentLabelsAreIndependent(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("events_total", map[string]string{"kind": "sms"}, "")
	r.IncrementCounter("events_total", map[string]string{"kind": "sms"}, "")
	r.IncrementCounter("events_total", map[string]string{"kind": "missed_call"}, "")

	snapshot := r.Snapshot()
	counters := snapshot["counters"].([]Metric)

	sms := findMetric(counters, "events_total", map[string]string{"kind": "sms"})
	require.NotNil(t, sms)
	assert.Equal(t, float64(2), sms.Value)

	missed := findMetric(counters, "events_total", map[string]string{"kind": "missed_call"})
	require.NotNil(t, missed)
	assert.Equal(t, float64(1), missed.Value)
}

func TestSetGauge(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("poll_cursor", 10, nil, "Current offset")
	r.SetGauge("poll_cursor", 42, nil, "Current offset")

	snapshot := r.Snapshot()
	gauges := snapshot["gauges"].([]Metric)

	metric := findMetric(gauges, "poll_cursor", nil)
	require.NotNil(t, metric)
	assert.Equal(t, float64(42), metric.Value)
}

func TestMetricKeyStableAcrossLabelOrder(t *testing.T) {
	a := metricKey("m", map[string]string{"x": "1", "y": "2"})
	b := metricKey("m", map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)

	assert.Equal(t, "m", metricKey("m", nil))
	assert.NotEqual(t, a, metricKey("m", map[string]string{"x": "1"}))
}

func TestSnapshotIncludesUptime(t *testing.T) {
	r := NewRegistry()
	snapshot := r.Snapshot()

	uptime, ok := snapshot["uptime_seconds"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, uptime, float64(0))
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.IncrementCounter("concurrent_total", nil, "")
				r.SetGauge("concurrent_gauge", float64(j), nil, "")
			}
		}()
	}
	wg.Wait()

	snapshot := r.Snapshot()
	counters := snapshot["counters"].([]Metric)
	metric := findMetric(counters, "concurrent_total", nil)
	require.NotNil(t, metric)
	assert.Equal(t, float64(1000), metric.Value)
}
