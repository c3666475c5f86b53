package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/agjmills/assetadmin/internal/storage"
	"gorm.io/gorm"
)

// HealthHandler reports whether the record database and the blob backend respond.
type HealthHandler struct {
	db      *gorm.DB
	blobs   storage.StorageBackend
	version string
}

func NewHealthHandler(db *gorm.DB, blobs storage.StorageBackend, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		blobs:   blobs,
		version: version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Checks  map[string]Check `json:"checks"`
	Uptime  string           `json:"uptime,omitempty"`
}

// Check is the outcome of one dependency probe.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

var startTime = time.Now()

const healthCheckTimeout = 2 * time.Second

// Health probes every dependency and answers 503 if any of them fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	probes := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", h.pingDatabase},
		{"storage", h.blobs.HealthCheck},
	}

	resp := HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Checks:  make(map[string]Check, len(probes)),
		Uptime:  time.Since(startTime).Round(time.Second).String(),
	}
	for _, p := range probes {
		check := probe(r.Context(), p.fn)
		if check.Status != "healthy" {
			resp.Status = "unhealthy"
			logger.Warn("health check failed", "check", p.name, "error", check.Message)
		}
		resp.Checks[p.name] = check
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// probe runs fn under healthCheckTimeout and times it.
func probe(parent context.Context, fn func(context.Context) error) Check {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, healthCheckTimeout)
	defer cancel()

	check := Check{Status: "healthy"}
	if err := fn(ctx); err != nil {
		check = Check{Status: "unhealthy", Message: err.Error()}
	}
	check.Latency = time.Since(start).String()
	return check
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
