package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/gateway"
	"github.com/nulzo/atlas-api/internal/server/validator"
	"github.com/nulzo/atlas-api/pkg/api"
)

type SettingsHandler struct {
	service gateway.Service
}

func NewSettingsHandler(service gateway.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// GET /v1/admin/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	current, err := h.service.Settings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, current)
}

// Update applies a partial change; omitted fields keep their value.
//
// PUT /v1/admin/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var req api.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	updated, err := h.service.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /v1/admin/settings
func (h *SettingsHandler) Reset(c *gin.Context) {
	defaults, err := h.service.ResetSettings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, defaults)
}

// Audit lists recent settings changes, newest first.
//
// GET /v1/admin/audit?limit=50
func (h *SettingsHandler) Audit(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = c.Error(api.BadRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	events, err := h.service.AuditLog(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": events})
}
