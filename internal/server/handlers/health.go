// Package handlers implements the HTTP API surface: job submission, status
// polling, worker dispatch, and the health/version endpoints.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker reports the health of one dependency.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// HealthManager aggregates dependency checks behind the health endpoint.
type HealthManager struct {
	version string

	mu       sync.RWMutex
	checkers map[string]Checker
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{version: version, checkers: make(map[string]Checker)}
}

// RegisterChecker adds a named dependency check.
func (m *HealthManager) RegisterChecker(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

// HealthHandler runs all registered checks. Any failing check turns the
// response into a 503.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	m.mu.RLock()
	defer m.mu.RUnlock()

	resp := HealthResponse{Status: "healthy", Version: m.version}
	if len(m.checkers) > 0 {
		resp.Checks = make(map[string]string, len(m.checkers))
	}

	status := http.StatusOK
	for name, checker := range m.checkers {
		if err := checker.CheckHealth(ctx); err != nil {
			resp.Checks[name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}

	writeJSON(w, status, resp)
}

// DBChecker reports job store connectivity.
type DBChecker struct {
	DB *sql.DB
}

func (c DBChecker) CheckHealth(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// VersionResponse is the version endpoint payload.
type VersionResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Version returns a handler serving build version info.
func Version(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Service: "cargohold", Version: version})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
