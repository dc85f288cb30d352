package checks

import (
	"context"
	"time"

	"github.com/charlesng35/zipkiosk/internal/monitoring"
)

const defaultBackupMaxAge = 6 * time.Hour

// BackupReporter exposes the outcome of the last scheduled backup.
type BackupReporter interface {
	LastRun() (at time.Time, err error)
}

// Backup verifies the scheduled CSV backup ran successfully within maxAge. A job that has
// not run yet is reported up with a note.
func Backup(job BackupReporter, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultBackupMaxAge
	}

	return monitoring.NewCheck("backup", func(context.Context) monitoring.ProbeResult {
		if job == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "backup disabled"}
		}

		at, err := job.LastRun()
		switch {
		case at.IsZero():
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "pending first run"}
		case err != nil:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: err.Error()}
		case time.Since(at) > maxAge:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "stale run " + at.UTC().Format(time.RFC3339)}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
