package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/pkg/response"
)

// WipeHandler drives the two-step wipe confirmation.
type WipeHandler struct {
	flow *operator.WipeFlow
}

func NewWipeHandler(flow *operator.WipeFlow) *WipeHandler {
	return &WipeHandler{flow: flow}
}

type confirmRequest struct {
	OK *bool `json:"ok" validate:"required"`
}

type codeRequest struct {
	Code string `json:"code" validate:"max=32"`
}

// GET /api/wipe
func (h *WipeHandler) Status(c *gin.Context) {
	response.Success(c, http.StatusOK, h.flow.Status())
}

// POST /api/wipe
func (h *WipeHandler) Begin(c *gin.Context) {
	response.Success(c, http.StatusCreated, h.flow.Begin())
}

// POST /api/wipe/:id/confirm
func (h *WipeHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.flow.Confirm(c.Param("id"), *req.OK)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// POST /api/wipe/:id/code
func (h *WipeHandler) SubmitCode(c *gin.Context) {
	var req codeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.flow.SubmitCode(requestContext(c), c.Param("id"), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// DELETE /api/wipe/:id
func (h *WipeHandler) Cancel(c *gin.Context) {
	status, err := h.flow.Cancel(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}
