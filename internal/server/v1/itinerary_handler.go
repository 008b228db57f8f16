package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/gateway"
	"github.com/nulzo/atlas-api/pkg/api"
)

// maxDocumentSize bounds itinerary and row payloads.
const maxDocumentSize = 1 << 20

type ItineraryHandler struct {
	service gateway.Service
}

func NewItineraryHandler(service gateway.Service) *ItineraryHandler {
	return &ItineraryHandler{service: service}
}

func readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentSize)
	body, err := c.GetRawData()
	if err != nil {
		_ = c.Error(api.BadRequestError("request body could not be read"))
		return nil, false
	}
	return body, true
}

// Validate always answers 200; the verdict is in the report. Malformed JSON is
// reported the same way as an absent document.
//
// POST /v1/itineraries/validate
func (h *ItineraryHandler) Validate(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.service.ValidateItinerary(body))
}

// Create validates and stores the itinerary in the hosted database.
//
// POST /v1/itineraries
func (h *ItineraryHandler) Create(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	saved, err := h.service.SaveItinerary(c.Request.Context(), body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}
