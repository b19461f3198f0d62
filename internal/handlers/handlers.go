package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"fbadmin/internal/admin"
)

// HealthStatus represents health check status
type HealthStatus int

const (
	HealthStatusHealthy HealthStatus = iota
	HealthStatusUnhealthy
	HealthStatusDegraded
)

// String returns the string representation of the health status
func (h HealthStatus) String() string {
	switch h {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusUnhealthy:
		return "unhealthy"
	case HealthStatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler interface
func (h HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Handlers contains all HTTP handlers with shared dependencies
type Handlers struct {
	checkers []admin.HealthChecker
	cache    admin.Cache
	logger   admin.Logger
	now      func() time.Time
}

// NewHandlers creates a new handlers instance with injected dependencies
func NewHandlers(checkers []admin.HealthChecker, cache admin.Cache, logger admin.Logger) *Handlers {
	return &Handlers{
		checkers: checkers,
		cache:    cache,
		logger:   logger.With("component", "handlers"),
		now:      time.Now,
	}
}

// LivenessHandler handles GET /health. It answers as long as the process runs.
func (h *Handlers) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": HealthStatusHealthy.String()})
}

// ReadinessHandler handles GET /health/ready requests
func (h *Handlers) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Timestamp:  h.now(),
		Components: make(map[string]ComponentHealth),
	}

	allHealthy := true
	for _, checker := range h.checkers {
		component := ComponentHealth{Status: HealthStatusHealthy}
		if err := checker.Health(ctx); err != nil {
			component.Status = HealthStatusUnhealthy
			component.Error = err.Error()
			allHealthy = false
		}
		response.Components[checker.Name()] = component
	}

	if h.cache != nil {
		stats := h.cache.Stats()
		response.Cache = &CacheHealth{
			Type:   stats.Type,
			Status: HealthStatusHealthy,
			Stats:  stats,
		}
	}

	statusCode := http.StatusOK
	response.Status = HealthStatusHealthy
	if !allHealthy {
		response.Status = HealthStatusUnhealthy
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, response)
	h.logger.Debug("health check completed",
		"status", response.Status,
		"components_count", len(response.Components))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode health response", "error", err)
	}
}

// HealthResponse types
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Cache      *CacheHealth               `json:"cache,omitempty"`
}

type ComponentHealth struct {
	Status HealthStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

type CacheHealth struct {
	Type   string           `json:"type"`
	Status HealthStatus     `json:"status"`
	Stats  admin.CacheStats `json:"stats"`
}
