// Package metrics is a small facade over the Prometheus client. Components ask
// the Default registry for named instruments; the ops server exposes them.
package metrics

import (
	"math"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "squash_venues"

// Counter is a monotonically increasing number.
type Counter struct {
	pc  prometheus.Counter
	val int64
}

func (c *Counter) Inc(delta int64) {
	if delta < 0 {
		return
	}
	atomic.AddInt64(&c.val, delta)
	c.pc.Add(float64(delta))
}

func (c *Counter) Get() int64 { return atomic.LoadInt64(&c.val) }

// Gauge is an arbitrary number that can go up and down.
type Gauge struct {
	pg  prometheus.Gauge
	f64 uint64
}

func (g *Gauge) SetFloat64(v float64) {
	atomic.StoreUint64(&g.f64, math.Float64bits(v))
	g.pg.Set(v)
}

func (g *Gauge) AddFloat64(delta float64) {
	for {
		old := atomic.LoadUint64(&g.f64)
		nv := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&g.f64, old, math.Float64bits(nv)) {
			g.pg.Set(nv)
			return
		}
	}
}

func (g *Gauge) GetFloat64() float64 { return math.Float64frombits(atomic.LoadUint64(&g.f64)) }

// Histogram records observations into fixed buckets.
type Histogram struct {
	ph    prometheus.Histogram
	count uint64
}

func (h *Histogram) Observe(v float64) {
	atomic.AddUint64(&h.count, 1)
	h.ph.Observe(v)
}

func (h *Histogram) Count() uint64 { return atomic.LoadUint64(&h.count) }

// Registry holds all instruments. Asking twice for a name returns the same one.
type Registry struct {
	mu         sync.Mutex
	reg        *prometheus.Registry
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Default is the process-wide registry; it also carries Go runtime collectors.
var Default = func() *Registry {
	r := NewRegistry()
	r.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}()

func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{pc: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: sanitize(name), Help: help})}
	r.reg.MustRegister(c.pc)
	r.counters[name] = c
	return c
}

func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{pg: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: sanitize(name), Help: help})}
	r.reg.MustRegister(g.pg)
	r.gauges[name] = g
	return g
}

func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	h := &Histogram{ph: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: sanitize(name), Help: help, Buckets: buckets})}
	r.reg.MustRegister(h.ph)
	r.histograms[name] = h
	return h
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// sanitize maps a free-form instrument name onto [a-zA-Z0-9_].
func sanitize(s string) string {
	b := []byte(s)
	for i, ch := range b {
		ok := ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (i > 0 && ch >= '0' && ch <= '9')
		if !ok {
			b[i] = '_'
		}
	}
	return string(b)
}
