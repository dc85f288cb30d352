package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/pkg/response"
)

// EntriesHandler serves the operator's count and export actions.
type EntriesHandler struct {
	exporter *operator.Exporter
}

func NewEntriesHandler(exporter *operator.Exporter) *EntriesHandler {
	return &EntriesHandler{exporter: exporter}
}

type countResponse struct {
	Count   int64  `json:"count"`
	Message string `json:"message"`
}

// GET /api/entries/count
func (h *EntriesHandler) Count(c *gin.Context) {
	count, err := h.exporter.Count(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, countResponse{Count: count, Message: operator.CountMessage(count)})
}

// GET /api/entries/export
func (h *EntriesHandler) Export(c *gin.Context) {
	export, err := h.exporter.Export(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, export.Filename, export.ContentType, export.Body)
}
