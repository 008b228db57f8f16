package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/analytics"
	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/pkg/api"
)

type AnalyticsHandler struct {
	service analytics.Service
}

func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

// GetUsage summarizes logged chat traffic.
//
// GET /v1/admin/usage?days=7
func (h *AnalyticsHandler) GetUsage(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		_ = c.Error(api.BadRequestError("days must be a non-negative integer"))
		return
	}

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to fetch analytics", err))
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRequest looks up a single logged chat request.
//
// GET /v1/admin/requests/:id
func (h *AnalyticsHandler) GetRequest(c *gin.Context) {
	log, err := h.service.GetRequest(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = c.Error(api.NotFoundError("No request logged with that id"))
		return
	case err != nil:
		_ = c.Error(api.InternalError("Failed to fetch request", err))
		return
	}

	c.JSON(http.StatusOK, log)
}
