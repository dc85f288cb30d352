package models

import (
	"time"
)

// AssetCacheEntry stores one cached response inside a named snapshot version.
type AssetCacheEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Version     string `gorm:"size:128;not null;uniqueIndex:idx_asset_version_key,priority:1"`
	Key         string `gorm:"column:request_key;size:512;not null;uniqueIndex:idx_asset_version_key,priority:2"`
	ContentType string `gorm:"size:128"`
	Body        []byte
	CreatedAt   time.Time
}
