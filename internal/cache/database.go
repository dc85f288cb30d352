package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/zipkiosk/internal/database"
	"github.com/charlesng35/zipkiosk/internal/models"
)

// DatabaseStore implements SnapshotStore on the primary SQL database.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed SnapshotStore.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) ready(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

// PutSnapshot replaces the contents of version with assets in one transaction.
func (s *DatabaseStore) PutSnapshot(ctx context.Context, version string, assets []Asset) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return errors.New("cache: version is required")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version = ?", version).Delete(&models.AssetCacheEntry{}).Error; err != nil {
			return fmt.Errorf("cache: reset %q: %w", version, err)
		}
		if len(assets) == 0 {
			return nil
		}

		rows := make([]models.AssetCacheEntry, 0, len(assets))
		for _, asset := range assets {
			rows = append(rows, models.AssetCacheEntry{
				Version:     version,
				Key:         asset.Key,
				ContentType: asset.ContentType,
				Body:        asset.Body,
			})
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "version"}, {Name: "request_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"content_type", "body"}),
		}).Create(&rows).Error
	})
}

// Match looks up key inside version.
func (s *DatabaseStore) Match(ctx context.Context, version, key string) (*Asset, bool, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, false, err
	}

	var row models.AssetCacheEntry
	err = db.Take(&row, "version = ? AND request_key = ?", version, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &Asset{Key: row.Key, ContentType: row.ContentType, Body: row.Body}, true, nil
}

// Versions lists every stored snapshot version.
func (s *DatabaseStore) Versions(ctx context.Context) ([]string, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	var versions []string
	if err := db.Model(&models.AssetCacheEntry{}).Distinct().Order("version").Pluck("version", &versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// DeleteVersion removes every asset stored under version. Deleting the active version
// also clears the active marker so it never names a missing snapshot.
func (s *DatabaseStore) DeleteVersion(ctx context.Context, version string) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version = ?", version).Delete(&models.AssetCacheEntry{}).Error; err != nil {
			return fmt.Errorf("cache: delete %q: %w", version, err)
		}

		active, err := database.GetSystemSetting(ctx, tx, database.ActiveAssetVersionSetting)
		if err != nil {
			return err
		}
		if active != version {
			return nil
		}
		return database.DeleteSystemSetting(ctx, tx, database.ActiveAssetVersionSetting)
	})
}

// ActiveVersion returns the version recorded by the last completed activation.
func (s *DatabaseStore) ActiveVersion(ctx context.Context) (string, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return "", err
	}
	return database.GetSystemSetting(ctx, db, database.ActiveAssetVersionSetting)
}

// SetActiveVersion records version as active.
func (s *DatabaseStore) SetActiveVersion(ctx context.Context, version string) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return database.UpsertSystemSetting(ctx, db, database.ActiveAssetVersionSetting, version)
}
