package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Status    string            `json:"status"`
}

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthChecker manages health checks for the service
type HealthChecker struct {
	checks   map[string]CheckFunc
	optional map[string]bool
}

// NewHealthChecker creates a HealthChecker that always probes the database
func NewHealthChecker(dbPool *pgxpool.Pool) *HealthChecker {
	h := &HealthChecker{
		checks:   make(map[string]CheckFunc),
		optional: make(map[string]bool),
	}
	if dbPool != nil {
		h.checks["database"] = dbPool.Ping
	}
	return h
}

// AddCheck registers a required dependency; a failure marks the service unhealthy
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.checks[name] = fn
}

// AddOptionalCheck registers a dependency whose failure only degrades the service
func (h *HealthChecker) AddOptionalCheck(name string, fn CheckFunc) {
	h.checks[name] = fn
	h.optional[name] = true
}

// Check performs health checks and returns the status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string, len(h.checks))
	overall := "healthy"

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.checks[name](checkCtx)
		cancel()

		switch {
		case err == nil:
			checks[name] = "healthy"
		case h.optional[name]:
			checks[name] = "degraded: " + err.Error()
			if overall == "healthy" {
				overall = "degraded"
			}
		default:
			checks[name] = "unhealthy: " + err.Error()
			overall = "unhealthy"
		}
	}

	return HealthStatus{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(status)
	}
}
