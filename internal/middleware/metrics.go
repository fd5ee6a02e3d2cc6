package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// counters for the console: request totals plus the engine-specific ones
// (pages merged, stale discards, exports). All atomics; read via snapshot.
type counters struct {
	requests   atomic.Uint64
	inProgress atomic.Int64
	succeeded  atomic.Uint64
	failed     atomic.Uint64

	pagesFetched   atomic.Uint64
	staleDiscarded atomic.Uint64
	exportsTotal   atomic.Uint64
	exportsEmpty   atomic.Uint64
}

var (
	metrics   counters
	startedAt = time.Now()
)

// IncrementPagesFetched counts finding pages merged into a session.
func IncrementPagesFetched() { metrics.pagesFetched.Add(1) }

// SetStaleDiscarded records the engine's stale-response drop count.
func SetStaleDiscarded(n uint64) { metrics.staleDiscarded.Store(n) }

// IncrementExports counts CSV exports served.
func IncrementExports() { metrics.exportsTotal.Add(1) }

// IncrementExportsEmpty counts exports rejected for an empty view.
func IncrementExportsEmpty() { metrics.exportsEmpty.Add(1) }

func snapshot() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       metrics.requests.Load(),
		"requests_in_progress": metrics.inProgress.Load(),
		"requests_success":     metrics.succeeded.Load(),
		"requests_failed":      metrics.failed.Load(),
		"pages_fetched":        metrics.pagesFetched.Load(),
		"stale_discarded":      metrics.staleDiscarded.Load(),
		"exports_total":        metrics.exportsTotal.Load(),
		"exports_empty":        metrics.exportsEmpty.Load(),
		"uptime_seconds":       time.Since(startedAt).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request counts and outcomes.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.requests.Add(1)
		metrics.inProgress.Add(1)
		defer metrics.inProgress.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			metrics.succeeded.Add(1)
		} else {
			metrics.failed.Add(1)
		}
	})
}

// MetricsHandler serves the counter snapshot as JSON.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot())
}
