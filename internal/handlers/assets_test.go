package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/zipkiosk/internal/handlers/testutil"
	"github.com/charlesng35/zipkiosk/internal/middleware"
)

func TestAssetsServedFromCache(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "cache", w.Header().Get(middleware.CacheSourceHeader))
	require.Contains(t, w.Body.String(), "<title>kiosk</title>")

	w = env.Request(http.MethodGet, "/script.js", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "render()", w.Body.String())
}

func TestAssetsNetworkThenFallback(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/logo.svg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "network", w.Header().Get(middleware.CacheSourceHeader))

	env.Origin.SetOffline(true)

	w = env.Request(http.MethodGet, "/logo.svg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "fallback", w.Header().Get(middleware.CacheSourceHeader))
	require.Contains(t, w.Body.String(), "<title>kiosk</title>")

	w = env.Request(http.MethodGet, "/style.css", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "cache", w.Header().Get(middleware.CacheSourceHeader))
}

func TestAssetsIgnoreAPIAndWrites(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/index.html", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"up"`)

	w = env.Request(http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"component":"assets"`)

	env.BreakStorage()
	w = env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	env.Request(http.MethodGet, "/api/keypad", nil)
	w := env.Request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "zipkiosk_api_latency_seconds")
}
