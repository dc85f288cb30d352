package models

import "time"

// SystemSetting persists device-wide values that should survive restarts, such as the
// asset cache version that was last activated.
type SystemSetting struct {
	Key       string    `gorm:"column:setting_key;primaryKey;size:128"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
