package maintenance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/pkg/logger"
)

const (
	defaultBackupSpec   = "@hourly"
	defaultBackupRetain = 48
	backupGlob          = "*_export_*.csv"
)

// Exporter renders the entry collection.
type Exporter interface {
	Export(ctx context.Context) (*operator.Export, error)
}

// Backup periodically writes the CSV export into a directory so entries survive a lost
// or wiped device. Old backups beyond the retention count are pruned.
type Backup struct {
	exporter Exporter
	dir      string
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
	retain   int

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// Option customises the Backup job.
type Option func(*Backup)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(b *Backup) {
		if c != nil {
			b.cron = c
		}
	}
}

// WithNow overrides the clock used for backup file names.
func WithNow(now func() time.Time) Option {
	return func(b *Backup) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSchedule overrides the cron specification.
func WithSchedule(spec string) Option {
	return func(b *Backup) {
		if spec = strings.TrimSpace(spec); spec != "" {
			b.schedule = spec
		}
	}
}

// WithRetain sets how many backup files are kept.
func WithRetain(n int) Option {
	return func(b *Backup) {
		if n > 0 {
			b.retain = n
		}
	}
}

// NewBackup constructs a backup job writing into dir.
func NewBackup(exporter Exporter, dir string, opts ...Option) (*Backup, error) {
	if exporter == nil {
		return nil, errors.New("maintenance: exporter is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("maintenance: backup directory is required")
	}

	b := &Backup{
		exporter: exporter,
		dir:      dir,
		now:      time.Now,
		schedule: defaultBackupSpec,
		retain:   defaultBackupRetain,
		log:      logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cron == nil {
		b.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return b, nil
}

// Start registers the backup job and launches the scheduler.
func (b *Backup) Start() error {
	if _, err := b.cron.AddFunc(b.schedule, func() {
		if _, err := b.RunOnce(context.Background()); err != nil {
			b.log.Warn("scheduled backup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", b.schedule, err)
	}

	b.cron.Start()
	b.log.Info("backup scheduled", zap.String("schedule", b.schedule), zap.String("dir", b.dir))
	return nil
}

// Stop halts the scheduler; the returned context is done once a running backup finishes.
func (b *Backup) Stop() context.Context {
	if b.cron == nil {
		return context.Background()
	}
	return b.cron.Stop()
}

// LastRun reports when the last backup attempt finished and its error, if any.
func (b *Backup) LastRun() (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRun, b.lastErr
}

// RunOnce writes one backup file and prunes old ones. An empty collection writes nothing.
func (b *Backup) RunOnce(ctx context.Context) (path string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		b.mu.Lock()
		b.lastRun = b.now()
		b.lastErr = err
		b.mu.Unlock()
	}()

	export, err := b.exporter.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("maintenance: export: %w", err)
	}
	if export.Rows == 0 {
		b.log.Debug("backup skipped, no entries")
		return "", nil
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("maintenance: create backup dir: %w", err)
	}

	path = filepath.Join(b.dir, backupName(export.Filename, b.now()))
	if err := writeFileAtomic(path, export.Body); err != nil {
		return "", err
	}

	b.log.Info("backup written", zap.String("path", path), zap.Int("rows", export.Rows))

	if err := b.prune(); err != nil {
		return path, err
	}
	return path, nil
}

// backupName keeps the export prefix and stamps date and time from one clock reading so
// names sort in write order.
func backupName(filename string, at time.Time) string {
	prefix := strings.TrimSuffix(filename, filepath.Ext(filename))
	if i := strings.LastIndex(prefix, "_export_"); i >= 0 {
		prefix = prefix[:i]
	}
	return fmt.Sprintf("%s_export_%s.csv", prefix, at.UTC().Format("2006-01-02_150405"))
}

func (b *Backup) prune() error {
	matches, err := filepath.Glob(filepath.Join(b.dir, backupGlob))
	if err != nil {
		return err
	}
	if len(matches) <= b.retain {
		return nil
	}

	sort.Strings(matches)
	var errs error
	for _, stale := range matches[:len(matches)-b.retain] {
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		b.log.Debug("backup pruned", zap.String("path", stale))
	}
	return errs
}

func writeFileAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*")
	if err != nil {
		return fmt.Errorf("maintenance: create temp file: %w", err)
	}

	_, writeErr := tmp.Write(body)
	closeErr := tmp.Close()
	if err := multierr.Combine(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("maintenance: write backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("maintenance: rename backup: %w", err)
	}
	return nil
}
