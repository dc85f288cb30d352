package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/zipkiosk/internal/handlers"
)

func registerKeypadRoutes(api *gin.RouterGroup, handler *handlers.KeypadHandler) {
	if api == nil || handler == nil {
		return
	}

	keypad := api.Group("/keypad")
	{
		keypad.GET("", handler.State)
		keypad.POST("/digits", handler.PushDigit)
		keypad.POST("/backspace", handler.Backspace)
		keypad.POST("/clear", handler.Clear)
		keypad.POST("/submit", handler.Submit)
		keypad.GET("/stream", handler.Stream)
	}
}
