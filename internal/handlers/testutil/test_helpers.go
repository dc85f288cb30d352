package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/zipkiosk/internal/api"
	"github.com/charlesng35/zipkiosk/internal/app"
	"github.com/charlesng35/zipkiosk/internal/assets"
	"github.com/charlesng35/zipkiosk/internal/cache"
	sharedtestutil "github.com/charlesng35/zipkiosk/internal/database/testutil"
	"github.com/charlesng35/zipkiosk/internal/entries"
	"github.com/charlesng35/zipkiosk/internal/handlers"
	"github.com/charlesng35/zipkiosk/internal/keypad"
	"github.com/charlesng35/zipkiosk/internal/monitoring"
	"github.com/charlesng35/zipkiosk/internal/monitoring/checks"
	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/internal/realtime"
	"github.com/charlesng35/zipkiosk/pkg/response"
)

// PageFiles is the kiosk page served by the test origin.
var PageFiles = fstest.MapFS{
	"index.html": {Data: []byte("<!doctype html><title>kiosk</title>")},
	"script.js":  {Data: []byte("render()")},
	"style.css":  {Data: []byte("body{}")},
	"logo.svg":   {Data: []byte("<svg/>")},
}

// Origin wraps an FSOrigin with a switch that simulates losing the network.
type Origin struct {
	inner   assets.Origin
	mu      sync.Mutex
	offline bool
}

// SetOffline toggles whether fetches fail.
func (o *Origin) SetOffline(offline bool) {
	o.mu.Lock()
	o.offline = offline
	o.mu.Unlock()
}

func (o *Origin) Fetch(ctx context.Context, key string) (*cache.Asset, error) {
	o.mu.Lock()
	offline := o.offline
	o.mu.Unlock()
	if offline {
		return nil, errors.New("network unreachable")
	}
	return o.inner.Fetch(ctx, key)
}

// Env encapsulates a fully-wired kiosk instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Config   *app.Config
	Store    *entries.Store
	Keypad   *keypad.Controller
	Exporter *operator.Exporter
	Wipe     *operator.WipeFlow
	Assets   *assets.Manager
	Origin   *Origin
	Realtime *realtime.Hub

	mu  sync.Mutex
	now time.Time
}

// NewEnv provisions a fresh kiosk with an activated asset cache.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	env := &Env{
		T:   t,
		DB:  sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate()),
		now: time.Date(2025, 3, 14, 15, 9, 26, 535000000, time.UTC),
	}

	env.Config = &app.Config{
		Kiosk: app.KioskConfig{ExportPrefix: operator.DefaultExportPrefix, MessageWindow: keypad.DefaultMessageWindow},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	store, err := entries.NewStore(env.DB, entries.WithNow(env.Now))
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	env.Store = store

	env.Realtime = realtime.NewHub()
	t.Cleanup(env.Realtime.Close)
	env.Keypad, err = keypad.NewController(store,
		keypad.WithNow(env.Now),
		keypad.WithObserver(func(state keypad.State) {
			env.Realtime.Broadcast(handlers.StateMessage(state))
		}),
	)
	require.NoError(t, err)

	env.Exporter, err = operator.NewExporter(store,
		operator.WithNotifier(env.Keypad),
		operator.WithClock(env.Now),
	)
	require.NoError(t, err)

	env.Wipe, err = operator.NewWipeFlow(store, env.Keypad)
	require.NoError(t, err)

	fsOrigin, err := assets.NewFSOrigin(PageFiles)
	require.NoError(t, err)
	env.Origin = &Origin{inner: fsOrigin}

	env.Assets, err = assets.NewManager(cache.NewDatabaseStore(env.DB), env.Origin)
	require.NoError(t, err)
	require.NoError(t, env.Assets.Start(context.Background()))

	health := monitoring.NewHealthManager()
	health.RegisterLiveness(checks.Database(env.DB, 0))
	health.RegisterReadiness(checks.Assets(env.Assets))

	env.Router, err = api.NewRouter(env.Config, api.Services{
		Keypad:   env.Keypad,
		Exporter: env.Exporter,
		Wipe:     env.Wipe,
		Assets:   env.Assets,
		Health:   health,
		Realtime: env.Realtime,
	})
	require.NoError(t, err)

	return env
}

// Now returns the environment's fake clock.
func (e *Env) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Advance moves the fake clock forward.
func (e *Env) Advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

// BreakStorage closes the database so subsequent writes fail.
func (e *Env) BreakStorage() {
	e.T.Helper()
	sqlDB, err := e.DB.DB()
	require.NoError(e.T, err)
	require.NoError(e.T, sqlDB.Close())
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, JSON encoding body when given.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// TypeZip pushes each digit of zip through the keypad API.
func (e *Env) TypeZip(zip string) {
	e.T.Helper()
	for _, d := range zip {
		w := e.Request(http.MethodPost, "/api/keypad/digits", map[string]string{"digit": string(d)})
		require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	}
}
