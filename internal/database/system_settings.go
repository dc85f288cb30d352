package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/zipkiosk/internal/models"
)

// ActiveAssetVersionSetting records the asset cache version that completed activation.
const ActiveAssetVersionSetting = "assets.active_version"

// GetSystemSetting retrieves a system setting by key. Returns an empty string when not found.
func GetSystemSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("system settings: db is nil")
	}

	var setting models.SystemSetting
	err := db.WithContext(ctx).Take(&setting, "setting_key = ?", key).Error
	if err == nil {
		return setting.Value, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return "", nil
	}
	return "", fmt.Errorf("system settings: get %q: %w", key, err)
}

// UpsertSystemSetting stores or updates a system setting value.
func UpsertSystemSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	if db == nil {
		return fmt.Errorf("system settings: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("system settings: key is required")
	}

	record := models.SystemSetting{
		Key:   key,
		Value: value,
	}

	err := db.WithContext(ctx).
		Where("setting_key = ?", key).
		Assign(map[string]any{"value": value}).
		FirstOrCreate(&record).Error
	if IsUniqueViolation(err) {
		// Another writer created the row between the lookup and the insert.
		err = db.WithContext(ctx).Model(&models.SystemSetting{}).
			Where("setting_key = ?", key).
			Update("value", value).Error
	}
	if err != nil {
		return fmt.Errorf("system settings: upsert %q: %w", key, err)
	}

	return nil
}

// DeleteSystemSetting removes a setting. Missing keys are not an error.
func DeleteSystemSetting(ctx context.Context, db *gorm.DB, key string) error {
	if db == nil {
		return fmt.Errorf("system settings: db is nil")
	}
	if err := db.WithContext(ctx).Where("setting_key = ?", key).Delete(&models.SystemSetting{}).Error; err != nil {
		return fmt.Errorf("system settings: delete %q: %w", key, err)
	}
	return nil
}
