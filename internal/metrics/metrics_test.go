package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_Singleton(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()
	assert.Same(t, m1, m2)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	before := testutil.ToFloat64(m.SignalsEmitted.WithLabelValues("slack", "blocker"))
	m.Emitted("slack", "blocker")
	m.Emitted("slack", "blocker")
	assert.Equal(t, before+2, testutil.ToFloat64(m.SignalsEmitted.WithLabelValues("slack", "blocker")))

	before = testutil.ToFloat64(m.NoiseDropped.WithLabelValues("slack", "greeting"))
	m.Dropped("slack", "greeting")
	assert.Equal(t, before+1, testutil.ToFloat64(m.NoiseDropped.WithLabelValues("slack", "greeting")))

	before = testutil.ToFloat64(m.AdapterErrors.WithLabelValues("asana", "fetch"))
	m.Failed("asana", "fetch")
	assert.Equal(t, before+1, testutil.ToFloat64(m.AdapterErrors.WithLabelValues("asana", "fetch")))

	m.ObserveFetch("asana", 250*time.Millisecond)
}

func TestMetrics_SetStatusIsExclusive(t *testing.T) {
	m := NewMetrics()

	m.SetStatus("linear", "error")
	m.SetStatus("linear", "healthy")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrationStatus.WithLabelValues("linear", "healthy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IntegrationStatus.WithLabelValues("linear", "error")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Emitted("slack", "update")
		m.Dropped("slack", "short")
		m.Failed("slack", "fetch")
		m.ObserveFetch("slack", time.Second)
		m.SetStatus("slack", "healthy")
	})
}
