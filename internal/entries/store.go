package entries

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/zipkiosk/internal/models"
	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
	"github.com/charlesng35/zipkiosk/pkg/logger"
	"github.com/charlesng35/zipkiosk/pkg/metrics"
)

// Store is the append-only collection of kiosk entries. It has no update or delete-by-id
// operation; entries leave the store only through ClearAll.
type Store struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger

	mu     sync.Mutex
	opened bool
}

// Option customises the Store.
type Option func(*Store)

// WithNow overrides the clock used to stamp new entries.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs a Store over db. Call Open before using it.
func NewStore(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("entries: db is required")
	}

	store := &Store{
		db:  db,
		now: time.Now,
		log: logger.WithModule("entries"),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Open ensures the entry collection exists. It is safe to call repeatedly.
func (s *Store) Open(ctx context.Context) error {
	if s == nil {
		return apperrors.ErrStorageUnavailable
	}
	ctx = ensuredContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&models.Entry{}); err != nil {
		s.log.Error("open entry store", zap.Error(err))
		return apperrors.ErrStorageUnavailable.WithInternal(err)
	}

	s.opened = true
	s.refreshGauge(ctx)
	return nil
}

func (s *Store) ready() error {
	if s == nil {
		return apperrors.ErrStorageUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return apperrors.ErrStorageUnavailable.WithInternal(errors.New("entries: store not opened"))
	}
	return nil
}

// Add appends an entry for zip stamped with the current time. The zip is stored as given;
// callers validate it before reaching the store.
func (s *Store) Add(ctx context.Context, zip string) (*models.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx = ensuredContext(ctx)

	entry := &models.Entry{
		Zip:       zip,
		Timestamp: models.FormatTimestamp(s.now()),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
	if err != nil {
		s.log.Warn("add entry failed", zap.Error(err))
		return nil, apperrors.ErrWriteFailed.WithInternal(err)
	}

	s.log.Debug("entry added", zap.Uint("id", entry.ID))
	metrics.StoredEntries.Inc()
	return entry, nil
}

// GetAll returns every stored entry. Rows come back in id order but callers should not
// depend on it.
func (s *Store) GetAll(ctx context.Context) ([]models.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx = ensuredContext(ctx)

	var rows []models.Entry
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithInternal(err)
	}
	if rows == nil {
		rows = []models.Entry{}
	}
	return rows, nil
}

// Count reports the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	ctx = ensuredContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Entry{}).Count(&count).Error; err != nil {
		return 0, apperrors.ErrStorageUnavailable.WithInternal(err)
	}
	metrics.StoredEntries.Set(float64(count))
	return count, nil
}

// ClearAll deletes every entry in a single transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx = ensuredContext(ctx)

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Entry{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		s.log.Warn("clear entries failed", zap.Error(err))
		return apperrors.ErrWriteFailed.WithInternal(err)
	}

	s.log.Info("entries cleared", zap.Int64("removed", removed))
	metrics.StoredEntries.Set(0)
	return nil
}

func (s *Store) refreshGauge(ctx context.Context) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Entry{}).Count(&count).Error; err == nil {
		metrics.StoredEntries.Set(float64(count))
	}
}
