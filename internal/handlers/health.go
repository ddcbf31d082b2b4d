package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Abdullah0x0/dreamdirector/internal/services"
	"github.com/Abdullah0x0/dreamdirector/internal/worker"
)

type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Service    string                 `json:"service"`
	Components map[string]interface{} `json:"components"`
}

// PoolStats reports the music worker pool.
type PoolStats interface {
	Stats() worker.Stats
}

type HealthHandler struct {
	cache    services.HealthChecker
	pool     PoolStats
	mediaDir string
	logger   *slog.Logger
}

// NewHealthHandler creates a health handler. cache and pool may be nil
// when those components are not configured.
func NewHealthHandler(cache services.HealthChecker, pool PoolStats, mediaDir string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cache:    cache,
		pool:     pool,
		mediaDir: mediaDir,
		logger:   logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]interface{})
	overallStatus := "healthy"

	switch {
	case h.cache == nil:
		components["cache"] = "disabled"
	case h.cache.Ping(ctx) != nil:
		h.logger.Warn("Cache health check failed")
		components["cache"] = "unhealthy"
		overallStatus = "degraded"
	default:
		components["cache"] = "healthy"
	}

	if h.pool != nil {
		components["music_workers"] = h.pool.Stats()
	}
	components["media_directory"] = h.mediaDir

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "dreamdirector",
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Error encoding health response",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
	}
}
