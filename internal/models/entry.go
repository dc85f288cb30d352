package models

import (
	"time"
)

// TimestampLayout renders entry timestamps as ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Entry is a single postal code captured at the kiosk. Entries are append-only and are
// removed only by a full wipe.
type Entry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Zip       string `gorm:"column:zip;type:varchar(5);not null" json:"zip"`
	Timestamp string `gorm:"column:ts;type:varchar(32);not null" json:"ts"`
}

// FormatTimestamp converts t into the stored timestamp representation.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
