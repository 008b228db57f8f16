package v1

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/gateway"
)

type DBHandler struct {
	service gateway.Service
}

func NewDBHandler(service gateway.Service) *DBHandler {
	return &DBHandler{service: service}
}

// Query passes PostgREST query parameters through unchanged.
//
// GET /v1/db/:table?select=id,name&order=created_at.desc
func (h *DBHandler) Query(c *gin.Context) {
	rows, err := h.service.QueryTable(c.Request.Context(), c.Param("table"), c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", rows)
}

// POST /v1/db/:table
func (h *DBHandler) Insert(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	rows, err := h.service.InsertRows(c.Request.Context(), c.Param("table"), json.RawMessage(body))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusCreated, "application/json; charset=utf-8", rows)
}
