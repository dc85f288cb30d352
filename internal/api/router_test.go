package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/zipkiosk/internal/app"
	"github.com/charlesng35/zipkiosk/internal/assets"
	"github.com/charlesng35/zipkiosk/internal/cache"
	"github.com/charlesng35/zipkiosk/internal/database/testutil"
	"github.com/charlesng35/zipkiosk/internal/entries"
	"github.com/charlesng35/zipkiosk/internal/keypad"
	"github.com/charlesng35/zipkiosk/internal/monitoring"
	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/web"
)

func newServices(t *testing.T) Services {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	store, err := entries.NewStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))

	controller, err := keypad.NewController(store)
	require.NoError(t, err)
	exporter, err := operator.NewExporter(store, operator.WithNotifier(controller))
	require.NoError(t, err)
	wipe, err := operator.NewWipeFlow(store, controller)
	require.NoError(t, err)

	page, err := web.FS()
	require.NoError(t, err)
	origin, err := assets.NewFSOrigin(page)
	require.NoError(t, err)
	manager, err := assets.NewManager(cache.NewDatabaseStore(db), origin)
	require.NoError(t, err)
	require.NoError(t, manager.Start(context.Background()))

	return Services{
		Keypad:   controller,
		Exporter: exporter,
		Wipe:     wipe,
		Assets:   manager,
		Health:   monitoring.NewHealthManager(),
	}
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouterValidatesDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := NewRouter(nil, newServices(t))
	require.Error(t, err)

	svc := newServices(t)
	svc.Assets = nil
	_, err = NewRouter(&app.Config{}, svc)
	require.Error(t, err)
}

func TestRouterServesEmbeddedPage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r, err := NewRouter(&app.Config{}, newServices(t))
	require.NoError(t, err)

	for _, key := range assets.DefaultAssets {
		w := serve(r, http.MethodGet, key)
		require.Equal(t, http.StatusOK, w.Code, key)
		require.Equal(t, "cache", w.Header().Get("X-Kiosk-Cache"), key)
		require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"), key)
	}

	w := serve(r, http.MethodGet, "/")
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), `src="/script.js"`)
}

func TestRouterHealthDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r, err := NewRouter(&app.Config{}, newServices(t))
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/health")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "disabled")
}

func TestRouterCustomMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &app.Config{Monitoring: app.MonitoringConfig{
		Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/internal/metrics"},
		Health:     app.HealthConfig{Enabled: true},
	}}
	r, err := NewRouter(cfg, newServices(t))
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/internal/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "# HELP")

	w = serve(r, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterKeypadStreamDisabledWithoutHub(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r, err := NewRouter(&app.Config{}, newServices(t))
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/api/keypad/stream")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}
