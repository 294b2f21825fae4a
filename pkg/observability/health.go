package observability

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// RefreshStatus reports the state of the refresh loop to health probes
type RefreshStatus interface {
	// LastSuccess returns the time of the last successful refresh, or the
	// zero time if no refresh has ever succeeded.
	LastSuccess() time.Time
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	refresh RefreshStatus
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(refresh RefreshStatus) *HealthChecker {
	return &HealthChecker{refresh: refresh}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness reports whether a refresh cycle has ever completed. The
// exporter serves (possibly empty) metrics either way, so this probe
// always returns 200; degraded only signals staleness to operators.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// Check performs a health check against the refresh loop
func (h *HealthChecker) Check() HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.refresh != nil {
		refreshStatus := h.checkRefresh()
		status.Dependencies["stripe_refresh"] = refreshStatus
		if refreshStatus.Status == StatusDegraded {
			status.Status = StatusDegraded
		}
	}

	return status
}

// checkRefresh checks whether the refresh loop has published a snapshot
func (h *HealthChecker) checkRefresh() DependencyStatus {
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	last := h.refresh.LastSuccess()
	if last.IsZero() {
		status.Status = StatusDegraded
		status.Message = "no refresh cycle has completed yet"
		return status
	}

	status.Message = "last successful refresh at " + last.UTC().Format(time.RFC3339)
	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(r *mux.Router, checker *HealthChecker) {
	r.HandleFunc("/health", checker.Readiness).Methods(http.MethodGet)
	r.HandleFunc("/health/live", checker.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", checker.Readiness).Methods(http.MethodGet)
}
