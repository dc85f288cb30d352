package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/zipkiosk/internal/keypad"
	"github.com/charlesng35/zipkiosk/internal/models"
	"github.com/charlesng35/zipkiosk/internal/realtime"
	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
	"github.com/charlesng35/zipkiosk/pkg/response"
)

// KeypadHandler exposes the on-screen keypad to the kiosk page.
type KeypadHandler struct {
	controller *keypad.Controller
	hub        *realtime.Hub
}

// NewKeypadHandler builds the keypad handler. hub may be nil, which disables the state stream.
func NewKeypadHandler(controller *keypad.Controller, hub *realtime.Hub) *KeypadHandler {
	return &KeypadHandler{controller: controller, hub: hub}
}

type digitRequest struct {
	Digit string `json:"digit" validate:"required"`
}

type submitResponse struct {
	Entry *models.Entry `json:"entry"`
	State keypad.State  `json:"state"`
}

// GET /api/keypad
func (h *KeypadHandler) State(c *gin.Context) {
	response.Success(c, http.StatusOK, h.controller.State())
}

// POST /api/keypad/digits
func (h *KeypadHandler) PushDigit(c *gin.Context) {
	var req digitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	state, err := h.controller.PushDigit(req.Digit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// POST /api/keypad/backspace
func (h *KeypadHandler) Backspace(c *gin.Context) {
	response.Success(c, http.StatusOK, h.controller.Backspace())
}

// POST /api/keypad/clear
func (h *KeypadHandler) Clear(c *gin.Context) {
	response.Success(c, http.StatusOK, h.controller.Clear())
}

// POST /api/keypad/submit
//
// Failures leave the message on the keypad state; the page re-reads it after an error.
func (h *KeypadHandler) Submit(c *gin.Context) {
	entry, state, err := h.controller.Submit(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, submitResponse{Entry: entry, State: state})
}

// GET /api/keypad/stream
//
// Upgrades to a WebSocket that receives every keypad state change, starting with the current one.
func (h *KeypadHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, apperrors.ErrNotFound.WithMessage("keypad stream is disabled"))
		return
	}
	h.hub.Serve(c.Writer, c.Request, func() []realtime.Message {
		return []realtime.Message{StateMessage(h.controller.State())}
	})
}

// StateMessage wraps a keypad state for the realtime stream.
func StateMessage(state keypad.State) realtime.Message {
	return realtime.Message{Stream: realtime.StreamKeypad, Event: "state", Data: state}
}
