package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ReturnsSameInstrument(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("venues_updated_total", "updated")
	b := r.Counter("venues_updated_total", "updated")
	require.Same(t, a, b)

	a.Inc(2)
	b.Inc(1)
	a.Inc(-5) // counters never go down
	assert.Equal(t, int64(3), a.Get())
}

func TestGaugeAndHistogram(t *testing.T) {
	r := NewRegistry()
	g := r.Gauge("cb-places.state", "breaker state")
	g.SetFloat64(1)
	g.AddFloat64(0.5)
	assert.InDelta(t, 1.5, g.GetFloat64(), 1e-9)

	h := r.Histogram("latency_ms", "latency", []float64{10, 100})
	h.Observe(5)
	h.Observe(500)
	assert.Equal(t, uint64(2), h.Count())
}

func TestHandler_ExposesNamespacedMetrics(t *testing.T) {
	r := NewRegistry()
	r.Counter("venues_processed_total", "processed").Inc(4)
	r.Gauge("cb-places.state", "breaker state").SetFloat64(2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "squash_venues_venues_processed_total 4")
	assert.Contains(t, string(body), "squash_venues_cb_places_state 2")
}
