package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/zipkiosk/internal/api"
	"github.com/charlesng35/zipkiosk/internal/app"
	"github.com/charlesng35/zipkiosk/internal/app/maintenance"
	"github.com/charlesng35/zipkiosk/internal/assets"
	"github.com/charlesng35/zipkiosk/internal/cache"
	"github.com/charlesng35/zipkiosk/internal/database"
	"github.com/charlesng35/zipkiosk/internal/entries"
	"github.com/charlesng35/zipkiosk/internal/handlers"
	"github.com/charlesng35/zipkiosk/internal/keypad"
	"github.com/charlesng35/zipkiosk/internal/monitoring"
	"github.com/charlesng35/zipkiosk/internal/monitoring/checks"
	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/internal/realtime"
	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
	"github.com/charlesng35/zipkiosk/pkg/logger"
	"github.com/charlesng35/zipkiosk/web"
)

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Store    *entries.Store
	Keypad   *keypad.Controller
	Exporter *operator.Exporter
	Wipe     *operator.WipeFlow
	Assets   *assets.Manager
	Backup   *maintenance.Backup
	Health   *monitoring.HealthManager
	Realtime *realtime.Hub
	Router   *gin.Engine
}

// bootstrapRuntime opens storage, installs the asset cache and builds the HTTP router.
// An unavailable entry store is fatal; an unreachable asset origin is not.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store, err = openEntryStore(ctx, stack.DB)
	if err != nil {
		return nil, err
	}

	stack.Realtime = realtime.NewHub()
	stack.Keypad, err = keypad.NewController(stack.Store,
		keypad.WithMessageWindow(cfg.Kiosk.MessageWindow),
		keypad.WithObserver(func(state keypad.State) {
			stack.Realtime.Broadcast(handlers.StateMessage(state))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise keypad: %w", err)
	}

	stack.Exporter, err = operator.NewExporter(stack.Store,
		operator.WithPrefix(cfg.Kiosk.ExportPrefix),
		operator.WithNotifier(stack.Keypad),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise exporter: %w", err)
	}

	stack.Wipe, err = operator.NewWipeFlow(stack.Store, stack.Keypad)
	if err != nil {
		return nil, fmt.Errorf("initialise wipe flow: %w", err)
	}

	origin, err := newAssetOrigin(cfg.Assets)
	if err != nil {
		return nil, err
	}
	stack.Assets, err = assets.NewManager(cache.NewDatabaseStore(stack.DB), origin, assets.WithVersion(cfg.Assets.Version))
	if err != nil {
		return nil, fmt.Errorf("initialise asset cache: %w", err)
	}
	if err := stack.Assets.Start(ctx); err != nil {
		if !errors.Is(err, apperrors.ErrNetworkAssetMissing) {
			return nil, fmt.Errorf("start asset cache: %w", err)
		}
		log.Warn("asset cache not installed; page requests pass through to origin", zap.Error(err))
	}

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterLiveness(checks.Database(stack.DB, 0))
	stack.Health.RegisterReadiness(checks.Assets(stack.Assets))

	if cfg.Maintenance.Backup.Enabled {
		stack.Backup, err = maintenance.NewBackup(stack.Exporter, cfg.Maintenance.Backup.Dir,
			maintenance.WithSchedule(cfg.Maintenance.Backup.Schedule),
			maintenance.WithRetain(cfg.Maintenance.Backup.Retain),
		)
		if err != nil {
			return nil, fmt.Errorf("initialise backup: %w", err)
		}
		if err := stack.Backup.Start(); err != nil {
			return nil, fmt.Errorf("start backup job: %w", err)
		}
		stack.Health.RegisterReadiness(checks.Backup(stack.Backup, 0))
	}

	stack.Router, err = api.NewRouter(cfg, api.Services{
		Keypad:   stack.Keypad,
		Exporter: stack.Exporter,
		Wipe:     stack.Wipe,
		Assets:   stack.Assets,
		Health:   stack.Health,
		Realtime: stack.Realtime,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, takes a final backup and releases the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Realtime != nil {
		s.Realtime.Close()
	}

	if s.Backup != nil {
		<-s.Backup.Stop().Done()
		if _, err := s.Backup.RunOnce(ctx); err != nil {
			log.Warn("shutdown backup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func newAssetOrigin(cfg app.AssetsConfig) (assets.Origin, error) {
	if upstream := strings.TrimSpace(cfg.Origin); upstream != "" {
		origin, err := assets.NewHTTPOrigin(upstream, nil, cfg.OriginTimeout)
		if err != nil {
			return nil, fmt.Errorf("configure asset origin: %w", err)
		}
		return origin, nil
	}

	page, err := web.FS()
	if err != nil {
		return nil, fmt.Errorf("load embedded page: %w", err)
	}
	return assets.NewFSOrigin(page)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithInternal(fmt.Errorf("open database: %w", err))
	}

	if err := database.AutoMigrate(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, apperrors.ErrStorageUnavailable.WithInternal(fmt.Errorf("auto-migrate database: %w", err))
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func openEntryStore(ctx context.Context, db *gorm.DB) (*entries.Store, error) {
	store, err := entries.NewStore(db)
	if err != nil {
		return nil, err
	}
	if err := store.Open(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
