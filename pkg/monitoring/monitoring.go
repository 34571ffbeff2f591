// Package monitoring instruments the ops server: request metrics and logs,
// plus optional pprof endpoints.
package monitoring

import (
	"net/http"
	pp "net/http/pprof"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"squash-venue-enrichment/pkg/logging"
	"squash-venue-enrichment/pkg/metrics"
)

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	sw.statusCode = statusCode
	sw.ResponseWriter.WriteHeader(statusCode)
}

// Middleware records request latency and error counts into reg and logs each
// request at debug level, 5xx at warn.
func Middleware(reg *metrics.Registry, log *logging.Logger) mux.MiddlewareFunc {
	if log == nil {
		log = logging.Nop()
	}
	cl := log.WithComponent("http")
	latency := reg.Histogram("http_request_duration_ms", "Ops server request latency (ms)", []float64{5, 25, 100, 250, 1000, 5000, 30000, 120000})
	requests := reg.Counter("http_requests_total", "Ops server requests")
	failures := reg.Counter("http_requests_failed_total", "Ops server requests answered with 5xx")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			requests.Inc(1)
			latency.Observe(float64(dur.Milliseconds()))
			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("route", routeOf(r)),
				logging.String("status", strconv.Itoa(sw.statusCode)),
				logging.Duration("duration", dur),
			}
			if sw.statusCode >= http.StatusInternalServerError {
				failures.Inc(1)
				cl.Warn("request failed", fields...)
				return
			}
			cl.Debug("request", fields...)
		})
	}
}

// routeOf prefers the route template so ids do not explode log cardinality.
func routeOf(r *http.Request) string {
	if rt := mux.CurrentRoute(r); rt != nil {
		if tpl, err := rt.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// RegisterPprof mounts the standard pprof handlers under /debug/pprof/.
func RegisterPprof(r *mux.Router) {
	s := r.PathPrefix("/debug/pprof").Subrouter()
	s.HandleFunc("/cmdline", pp.Cmdline)
	s.HandleFunc("/profile", pp.Profile)
	s.HandleFunc("/symbol", pp.Symbol)
	s.HandleFunc("/trace", pp.Trace)
	s.PathPrefix("/").HandlerFunc(pp.Index)
}

// EnableProfiling toggles block and mutex sampling for the pprof endpoints.
func EnableProfiling(enabled bool) {
	if enabled {
		runtime.SetBlockProfileRate(1)
		runtime.SetMutexProfileFraction(5)
		return
	}
	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
}
