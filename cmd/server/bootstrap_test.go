package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/zipkiosk/internal/app"
	"github.com/charlesng35/zipkiosk/internal/assets"
	"github.com/charlesng35/zipkiosk/internal/entries"
	"github.com/charlesng35/zipkiosk/internal/operator"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	body = strings.ReplaceAll(body, "$DIR", filepath.ToSlash(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	dir := writeConfig(t, `
database:
  path: $DIR/kiosk.sqlite
maintenance:
  backup:
    enabled: true
    dir: $DIR/backups
`)
	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	return cfg
}

func TestLoadApplicationConfig(t *testing.T) {
	dir := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)

	cfg, err = loadApplicationConfig(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)

	_, err = loadApplicationConfig(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestBootstrapRuntime(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, assets.StateActive, stack.Assets.State())
	require.NotNil(t, stack.Backup)

	_, err = stack.Store.Add(context.Background(), "28202")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "cache", w.Header().Get("X-Kiosk-Cache"))

	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	stack.Shutdown(context.Background(), zap.NewNop())

	backups, err := filepath.Glob(filepath.Join(cfg.Maintenance.Backup.Dir, "*.csv"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
}

func TestBootstrapRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestBootstrapWithUnreachableOrigin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Maintenance.Backup.Enabled = false
	cfg.Assets.Origin = "http://127.0.0.1:1/kiosk"
	cfg.Assets.OriginTimeout = 200 * time.Millisecond

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer stack.Shutdown(context.Background(), zap.NewNop())

	require.Equal(t, assets.StateUninstalled, stack.Assets.State())
}

func seedEntries(t *testing.T, cfg *app.Config, zips ...string) {
	t.Helper()
	db, err := initialiseDatabase(cfg)
	require.NoError(t, err)
	defer closeDatabase(db, zap.NewNop())

	store, err := entries.NewStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	for _, zip := range zips {
		_, err := store.Add(context.Background(), zip)
		require.NoError(t, err)
	}
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestExportCommand(t *testing.T) {
	dir := writeConfig(t, "database:\n  path: $DIR/kiosk.sqlite\n")
	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	seedEntries(t, cfg, "28202", "28277")

	out := filepath.Join(t.TempDir(), "export.csv")
	_, stderr, err := runCommand(t, "export", "--config", dir, "--out", out)
	require.NoError(t, err)
	require.Contains(t, stderr, "wrote 2 entries")

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "timestamp,zip", lines[0])
	require.True(t, strings.HasSuffix(lines[2], ",28277"))

	stdout, _, err := runCommand(t, "export", "--config", dir, "--out", "-")
	require.NoError(t, err)
	require.Equal(t, string(body), stdout)
}

func TestCountCommand(t *testing.T) {
	dir := writeConfig(t, "database:\n  path: $DIR/kiosk.sqlite\n")
	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	seedEntries(t, cfg, "28202", "28277", "28105")

	stdout, _, err := runCommand(t, "count", "-c", dir)
	require.NoError(t, err)
	require.Equal(t, operator.CountMessage(3)+"\n", stdout)
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := runCommand(t, "frobnicate")
	require.Error(t, err)
}
