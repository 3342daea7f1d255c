package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/zoning-engine/internal/middleware"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.1.0"
	// HealthCheckTimeout is the timeout for dependency health checks
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db              Pinger
	cache           Pinger
	startTime       time.Time
	env             string
	manifestVersion string
}

// NewHealthHandler creates a new HealthHandler instance. cache may be nil
// when the ordinance cache has no separate backend to check.
func NewHealthHandler(db, cache Pinger, env, manifestVersion string) *HealthHandler {
	return &HealthHandler{
		db:              db,
		cache:           cache,
		startTime:       time.Now(),
		env:             env,
		manifestVersion: manifestVersion,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version         string `json:"version"`
	Environment     string `json:"environment"`
	Uptime          string `json:"uptime"`
	ManifestVersion string `json:"manifest_version"`
}

// Health handles GET /health endpoint.
// This is a basic health check that always returns 200 OK.
// It does not check any dependencies and is used for basic liveness checks.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready endpoint.
// This is a readiness check that verifies the database and, when configured,
// the cache backend are reachable.
// Returns 200 OK if every dependency is connected, 503 Service Unavailable otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	response := ReadyResponse{
		Status:   "ready",
		Database: h.check(ctx, c, "database", h.db),
	}
	if h.cache != nil {
		response.Cache = h.check(ctx, c, "cache", h.cache)
	}

	if response.Database != "connected" || response.Cache == "disconnected" {
		response.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) check(ctx context.Context, c *gin.Context, name string, dep Pinger) string {
	if err := dep.Ping(ctx); err != nil {
		// Get logger from context (set by logger middleware)
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Health check failed", err, map[string]interface{}{
				"dependency": name,
				"timeout":    HealthCheckTimeout.String(),
			})
		}
		return "disconnected"
	}
	return "connected"
}

// Info handles GET /api/v1/info endpoint.
// Returns API metadata including version, environment, and uptime.
func (h *HealthHandler) Info(c *gin.Context) {
	uptime := time.Since(h.startTime)

	c.JSON(http.StatusOK, InfoResponse{
		Version:         APIVersion,
		Environment:     h.env,
		Uptime:          formatUptime(uptime),
		ManifestVersion: h.manifestVersion,
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
