package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/zipkiosk/internal/assets"
	"github.com/charlesng35/zipkiosk/internal/middleware"
	"github.com/charlesng35/zipkiosk/pkg/response"
)

// AssetHandler answers every unrouted GET through the asset cache manager.
type AssetHandler struct {
	manager *assets.Manager
}

func NewAssetHandler(manager *assets.Manager) *AssetHandler {
	return &AssetHandler{manager: manager}
}

// Serve is installed as the router's NoRoute handler. API paths never fall back to the
// cached page.
func (h *AssetHandler) Serve(c *gin.Context) {
	method := c.Request.Method
	key := c.Request.URL.Path
	if (method != http.MethodGet && method != http.MethodHead) || strings.HasPrefix(key, "/api/") {
		middleware.NotFoundHandler(c)
		return
	}

	asset, source, err := h.manager.Serve(requestContext(c), key)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header(middleware.CacheSourceHeader, string(source))
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, asset.ContentType, asset.Body)
}
