package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/gateway"
	"github.com/nulzo/atlas-api/pkg/api"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// ListModels returns the ranked catalog.
//
// GET /v1/models?tier=free|cheap|premium&provider=openai
func (h *ModelHandler) ListModels(c *gin.Context) {
	filter := gateway.ModelFilter{
		Tier:     catalog.Tier(strings.ToLower(c.Query("tier"))),
		Provider: c.Query("provider"),
	}
	if filter.Tier != "" && !filter.Tier.Valid() {
		_ = c.Error(api.BadRequestError("tier must be one of free, cheap, premium"))
		return
	}

	models, err := h.service.ListModels(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models)
}
