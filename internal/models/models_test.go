package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatTimestampUsesUTCMilliseconds(t *testing.T) {
	loc := time.FixedZone("EDT", -4*60*60)
	ts := time.Date(2026, 10, 14, 9, 30, 5, 123456789, loc)

	require.Equal(t, "2026-10-14T13:30:05.123Z", FormatTimestamp(ts))
}

func TestFormatTimestampPadsMilliseconds(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.Equal(t, "2026-01-02T03:04:05.000Z", FormatTimestamp(ts))
}
