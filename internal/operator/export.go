package operator

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/zipkiosk/internal/models"
	"github.com/charlesng35/zipkiosk/pkg/logger"
	"github.com/charlesng35/zipkiosk/pkg/metrics"
)

// DefaultExportPrefix names export files when no prefix is configured.
const DefaultExportPrefix = "meckco_zip"

const (
	csvContentType = "text/csv; charset=utf-8"
	dateLayout     = "2006-01-02"
)

var csvHeader = []string{"timestamp", "zip"}

// Notifier shows a transient message on the kiosk display.
type Notifier interface {
	Notify(msg string)
}

// EntrySource reads the stored entries.
type EntrySource interface {
	GetAll(ctx context.Context) ([]models.Entry, error)
	Count(ctx context.Context) (int64, error)
}

// Export describes a rendered CSV export.
type Export struct {
	Filename    string
	ContentType string
	Rows        int
	Body        []byte
}

// Exporter renders the entry collection as CSV and reports its size.
type Exporter struct {
	source   EntrySource
	notifier Notifier
	prefix   string
	now      func() time.Time
	log      *zap.Logger
}

// ExporterOption customises the Exporter.
type ExporterOption func(*Exporter)

// WithPrefix sets the filename prefix used for exports.
func WithPrefix(prefix string) ExporterOption {
	return func(e *Exporter) {
		if p := strings.TrimSpace(prefix); p != "" {
			e.prefix = p
		}
	}
}

// WithNotifier routes count messages to the kiosk display.
func WithNotifier(n Notifier) ExporterOption {
	return func(e *Exporter) {
		e.notifier = n
	}
}

// WithClock overrides the clock used for export filenames.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter constructs an Exporter reading from source.
func NewExporter(source EntrySource, opts ...ExporterOption) (*Exporter, error) {
	if source == nil {
		return nil, errors.New("operator: entry source is required")
	}

	e := &Exporter{
		source: source,
		prefix: DefaultExportPrefix,
		now:    time.Now,
		log:    logger.WithModule("operator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Filename returns the export filename for prefix on the UTC date of t.
func Filename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_export_%s.csv", prefix, t.UTC().Format(dateLayout))
}

// WriteCSV writes the header and one "ts,zip" row per entry in the given order.
func WriteCSV(w io.Writer, entries []models.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := cw.Write([]string{entry.Timestamp, entry.Zip}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export reads every entry and renders the CSV download.
func (e *Exporter) Export(ctx context.Context) (*Export, error) {
	entries, err := e.source.GetAll(ctx)
	if err != nil {
		metrics.OperatorActions.WithLabelValues("export", "failed").Inc()
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		metrics.OperatorActions.WithLabelValues("export", "failed").Inc()
		return nil, fmt.Errorf("operator: render csv: %w", err)
	}

	out := &Export{
		Filename:    Filename(e.prefix, e.now()),
		ContentType: csvContentType,
		Rows:        len(entries),
		Body:        buf.Bytes(),
	}

	metrics.OperatorActions.WithLabelValues("export", "exported").Inc()
	e.log.Info("entries exported", zap.String("filename", out.Filename), zap.Int("rows", out.Rows))
	return out, nil
}

// Count reports the number of stored entries and shows it on the display.
func (e *Exporter) Count(ctx context.Context) (int64, error) {
	count, err := e.source.Count(ctx)
	if err != nil {
		return 0, err
	}
	if e.notifier != nil {
		e.notifier.Notify(CountMessage(count))
	}
	return count, nil
}

// CountMessage formats the entry count shown on the display.
func CountMessage(count int64) string {
	return fmt.Sprintf("%d entries on device", count)
}
