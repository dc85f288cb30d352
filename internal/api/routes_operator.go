package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/zipkiosk/internal/handlers"
)

func registerOperatorRoutes(api *gin.RouterGroup, entries *handlers.EntriesHandler, wipe *handlers.WipeHandler) {
	if api == nil {
		return
	}

	if entries != nil {
		group := api.Group("/entries")
		group.GET("/count", entries.Count)
		group.GET("/export", entries.Export)
	}

	if wipe != nil {
		group := api.Group("/wipe")
		group.GET("", wipe.Status)
		group.POST("", wipe.Begin)
		group.POST("/:id/confirm", wipe.Confirm)
		group.POST("/:id/code", wipe.SubmitCode)
		group.DELETE("/:id", wipe.Cancel)
	}
}
