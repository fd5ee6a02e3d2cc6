package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker probes one dependency of the console.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// PingFunc adapts a plain func to HealthChecker; used for the upstream API.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the findings database.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthReport struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
}

// HealthHandler runs every registered checker and reports 503 when any
// dependency is down. With no checkers it degenerates to a liveness probe.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := healthReport{
			Status:    "healthy",
			Timestamp: time.Now(),
			Checks:    make(map[string]checkResult, len(checkers)),
		}
		for name, c := range checkers {
			if err := c.Check(ctx); err != nil {
				report.Status = "unhealthy"
				report.Checks[name] = checkResult{Status: "unhealthy", Message: err.Error()}
				continue
			}
			report.Checks[name] = checkResult{Status: "healthy"}
		}

		code := http.StatusOK
		if report.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(report)
	}
}

// ReadinessHandler reports the process is accepting traffic.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessHandler is the cheapest possible probe.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}
