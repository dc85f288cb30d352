package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/zipkiosk/internal/cache"
	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
	"github.com/charlesng35/zipkiosk/pkg/logger"
	"github.com/charlesng35/zipkiosk/pkg/metrics"
)

// DefaultVersion names the current asset snapshot. Bump it when the page changes so the
// next start replaces every cached asset.
const DefaultVersion = "zip-cache-v1"

// RootKey is the document served when nothing better is available offline.
const RootKey = "/"

// DefaultAssets is the fixed list of page assets cached on install.
var DefaultAssets = []string{RootKey, "/index.html", "/script.js", "/style.css"}

// State is the lifecycle phase of the Manager.
type State string

const (
	StateUninstalled State = "uninstalled"
	StateInstalling  State = "installing"
	StateInstalled   State = "installed"
	StateActivating  State = "activating"
	StateActive      State = "active"
)

// Source tells where a served asset came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
)

// Manager keeps a versioned snapshot of the page assets and answers asset requests from
// it, falling back to the origin and finally to the cached root document.
type Manager struct {
	store   cache.SnapshotStore
	origin  Origin
	version string
	assets  []string
	log     *zap.Logger
	flights singleflight.Group

	mu      sync.RWMutex
	state   State
	serving string
}

// Option customises the Manager.
type Option func(*Manager)

// WithVersion overrides the snapshot version name.
func WithVersion(version string) Option {
	return func(m *Manager) {
		if v := strings.TrimSpace(version); v != "" {
			m.version = v
		}
	}
}

// WithAssets overrides the list of assets cached on install.
func WithAssets(keys ...string) Option {
	return func(m *Manager) {
		if len(keys) > 0 {
			m.assets = dedupe(keys)
		}
	}
}

// NewManager constructs a Manager in the uninstalled state.
func NewManager(store cache.SnapshotStore, origin Origin, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("assets: snapshot store is required")
	}
	if origin == nil {
		return nil, errors.New("assets: origin is required")
	}

	m := &Manager{
		store:   store,
		origin:  origin,
		version: DefaultVersion,
		assets:  dedupe(DefaultAssets),
		log:     logger.WithModule("assets"),
		state:   StateUninstalled,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Version returns the configured snapshot version.
func (m *Manager) Version() string {
	return m.version
}

// ServingVersion returns the snapshot currently answering requests, if any.
func (m *Manager) ServingVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.serving
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// Install fetches every asset from the origin and stores them under the current version.
// If any fetch fails nothing is written and the manager returns to uninstalled.
func (m *Manager) Install(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateInstalling || m.state == StateActivating {
		m.mu.Unlock()
		return apperrors.ErrConflict.WithMessage("asset cache is busy")
	}
	previous := m.state
	m.state = StateInstalling
	m.mu.Unlock()

	fetched := make([]cache.Asset, 0, len(m.assets))
	for _, key := range m.assets {
		asset, err := m.origin.Fetch(ctx, key)
		if err != nil {
			m.log.Warn("asset install aborted", zap.String("version", m.version), zap.String("key", key), zap.Error(err))
			m.restoreAfterFailedInstall(previous)
			return apperrors.ErrNetworkAssetMissing.WithInternal(fmt.Errorf("%s: %w", key, err))
		}
		fetched = append(fetched, cache.Asset{Key: key, ContentType: asset.ContentType, Body: asset.Body})
	}

	if err := m.store.PutSnapshot(ctx, m.version, fetched); err != nil {
		m.log.Warn("asset snapshot write failed", zap.String("version", m.version), zap.Error(err))
		m.restoreAfterFailedInstall(previous)
		return apperrors.ErrWriteFailed.WithInternal(err)
	}

	m.setState(StateInstalled)
	m.log.Info("asset snapshot installed", zap.String("version", m.version), zap.Int("assets", len(fetched)))
	return nil
}

// restoreAfterFailedInstall keeps an already active snapshot serving; otherwise the
// manager goes back to uninstalled.
func (m *Manager) restoreAfterFailedInstall(previous State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if previous == StateActive && m.serving != "" {
		m.state = StateActive
		return
	}
	m.state = StateUninstalled
}

// Activate deletes every snapshot version other than the current one and starts
// answering requests from the current snapshot.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInstalled {
		state := m.state
		m.mu.Unlock()
		return apperrors.ErrConflict.WithMessage(fmt.Sprintf("asset cache cannot activate from %s", state))
	}
	m.state = StateActivating
	m.mu.Unlock()

	versions, err := m.store.Versions(ctx)
	if err != nil {
		m.setState(StateInstalled)
		return fmt.Errorf("assets: list versions: %w", err)
	}

	var errs error
	evicted := 0
	for _, version := range versions {
		if version == m.version {
			continue
		}
		if err := m.store.DeleteVersion(ctx, version); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("assets: delete %q: %w", version, err))
			continue
		}
		evicted++
		m.log.Info("asset snapshot evicted", zap.String("version", version))
	}
	metrics.EvictedSnapshots.Add(float64(evicted))

	if errs == nil {
		errs = m.store.SetActiveVersion(ctx, m.version)
	}
	if errs != nil {
		m.setState(StateInstalled)
		return errs
	}

	m.mu.Lock()
	m.state = StateActive
	m.serving = m.version
	m.mu.Unlock()

	m.log.Info("asset snapshot active", zap.String("version", m.version), zap.Int("evicted", evicted))
	return nil
}

// Start installs and activates the current version. When the origin is unreachable but
// a previously activated snapshot is still stored, that snapshot keeps serving.
func (m *Manager) Start(ctx context.Context) error {
	installErr := m.Install(ctx)
	if installErr == nil {
		return m.Activate(ctx)
	}

	previous, err := m.store.ActiveVersion(ctx)
	if err != nil || previous == "" {
		return installErr
	}
	if _, ok, err := m.store.Match(ctx, previous, RootKey); err != nil || !ok {
		return installErr
	}

	m.mu.Lock()
	m.state = StateActive
	m.serving = previous
	m.mu.Unlock()

	m.log.Warn("asset install failed; serving previous snapshot",
		zap.String("version", m.version),
		zap.String("serving", previous),
		zap.Error(installErr),
	)
	return nil
}

// Serve answers a request for key: cached copy first, then the live origin, then the
// cached root document. Before activation requests go straight to the origin.
func (m *Manager) Serve(ctx context.Context, key string) (*cache.Asset, Source, error) {
	m.mu.RLock()
	state, serving := m.state, m.serving
	m.mu.RUnlock()

	if state != StateActive || serving == "" {
		asset, err := m.fetch(ctx, key)
		if err != nil {
			metrics.AssetResponses.WithLabelValues("miss").Inc()
			return nil, "", apperrors.ErrOfflineFetchMiss.WithInternal(err)
		}
		metrics.AssetResponses.WithLabelValues(string(SourceNetwork)).Inc()
		return asset, SourceNetwork, nil
	}

	if asset, ok := m.match(ctx, serving, key); ok {
		metrics.AssetResponses.WithLabelValues(string(SourceCache)).Inc()
		return asset, SourceCache, nil
	}

	asset, fetchErr := m.fetch(ctx, key)
	if fetchErr == nil {
		metrics.AssetResponses.WithLabelValues(string(SourceNetwork)).Inc()
		return asset, SourceNetwork, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", ctxErr
	}

	if root, ok := m.match(ctx, serving, RootKey); ok {
		m.log.Debug("serving cached root for offline miss", zap.String("key", key), zap.Error(fetchErr))
		metrics.AssetResponses.WithLabelValues(string(SourceFallback)).Inc()
		return root, SourceFallback, nil
	}

	metrics.AssetResponses.WithLabelValues("miss").Inc()
	return nil, "", apperrors.ErrOfflineFetchMiss.WithInternal(fetchErr)
}

func (m *Manager) match(ctx context.Context, version, key string) (*cache.Asset, bool) {
	asset, ok, err := m.store.Match(ctx, version, key)
	if err != nil {
		m.log.Warn("asset cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return asset, ok
}

// fetch collapses concurrent origin requests for the same key into one.
func (m *Manager) fetch(ctx context.Context, key string) (*cache.Asset, error) {
	// The shared fetch must outlive any single caller; each caller still honours its own ctx.
	flight := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(key, func() (interface{}, error) {
		return m.origin.Fetch(flight, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.Asset), nil
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
