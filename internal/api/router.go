package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/zipkiosk/internal/app"
	"github.com/charlesng35/zipkiosk/internal/assets"
	"github.com/charlesng35/zipkiosk/internal/handlers"
	"github.com/charlesng35/zipkiosk/internal/keypad"
	"github.com/charlesng35/zipkiosk/internal/middleware"
	"github.com/charlesng35/zipkiosk/internal/monitoring"
	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/internal/realtime"
)

// Services carries the long-lived components the router exposes.
type Services struct {
	Keypad   *keypad.Controller
	Exporter *operator.Exporter
	Wipe     *operator.WipeFlow
	Assets   *assets.Manager
	Health   *monitoring.HealthManager
	Realtime *realtime.Hub
}

func (s Services) validate() error {
	switch {
	case s.Keypad == nil:
		return fmt.Errorf("keypad controller must be provided")
	case s.Exporter == nil:
		return fmt.Errorf("exporter must be provided")
	case s.Wipe == nil:
		return fmt.Errorf("wipe flow must be provided")
	case s.Assets == nil:
		return fmt.Errorf("asset manager must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers the kiosk routes.
// Every GET that matches no route is answered by the asset cache.
func NewRouter(cfg *app.Config, svc Services) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, cfg, svc.Health)

	api := r.Group("/api")
	api.Use(middleware.NoStore())
	registerKeypadRoutes(api, handlers.NewKeypadHandler(svc.Keypad, svc.Realtime))
	registerOperatorRoutes(api, handlers.NewEntriesHandler(svc.Exporter), handlers.NewWipeHandler(svc.Wipe))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(handlers.NewAssetHandler(svc.Assets).Serve)

	return r, nil
}
