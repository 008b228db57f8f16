package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/gateway"
	"github.com/nulzo/atlas-api/pkg/api"
)

type HealthHandler struct {
	service   gateway.Service
	version   string
	startTime time.Time
}

func NewHealthHandler(service gateway.Service, version string) *HealthHandler {
	return &HealthHandler{
		service:   service,
		version:   version,
		startTime: time.Now(),
	}
}

// Health returns the health status and uptime of the API.
//
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready reports per-dependency checks. Only the local database gates
// readiness; the catalog has a fallback when the upstream is down.
//
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := h.service.Health(c.Request.Context())

	status, code := "ready", http.StatusOK
	if checks["database"] != "ok" {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, api.HealthResponse{
		Status:  status,
		Version: h.version,
		Checks:  checks,
	})
}
