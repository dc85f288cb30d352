package keypad

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/zipkiosk/internal/models"
	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
	"github.com/charlesng35/zipkiosk/pkg/logger"
	"github.com/charlesng35/zipkiosk/pkg/metrics"
)

const (
	// ZipLength is the number of digits a complete entry holds.
	ZipLength = 5

	// DefaultMessageWindow is how long a transient message stays visible.
	DefaultMessageWindow = 1200 * time.Millisecond

	placeholder = "_"
)

// Messages shown on the kiosk display.
const (
	MessageNeedDigits = "Please enter 5 digits"
	MessageSaved      = "Saved! Next person →"
	MessageSaveFailed = "Save failed (still offline?)"
	messageInvalidKey = "Digits only"
)

// EntryWriter persists a validated zip.
type EntryWriter interface {
	Add(ctx context.Context, zip string) (*models.Entry, error)
}

// State is a point-in-time view of the keypad for rendering. Revision increases with every
// published change so clients can drop stale states.
type State struct {
	Display       string `json:"display"`
	Digits        string `json:"digits"`
	Length        int    `json:"length"`
	SubmitEnabled bool   `json:"submit_enabled"`
	Message       string `json:"message,omitempty"`
	Revision      uint64 `json:"revision"`
}

// Controller owns the input buffer and the transient message line. One instance serves
// the kiosk for the lifetime of the process; all methods are safe for concurrent use.
type Controller struct {
	store  EntryWriter
	now    func() time.Time
	window time.Duration
	log    *zap.Logger

	observe func(State)

	mu           sync.Mutex
	digits       []byte
	message      string
	messageUntil time.Time
	expiry       *time.Timer
	revision     uint64
}

// Option customises the Controller.
type Option func(*Controller)

// WithNow overrides the clock used for message expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMessageWindow overrides how long transient messages stay visible.
func WithMessageWindow(window time.Duration) Option {
	return func(c *Controller) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithObserver registers fn to receive the keypad state after every change and when a
// message expires. fn runs with the controller locked; it must not block or call back
// into the Controller.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) {
		c.observe = fn
	}
}

// NewController constructs a keypad controller that saves submissions to store.
func NewController(store EntryWriter, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("keypad: entry writer is required")
	}

	c := &Controller{
		store:  store,
		now:    time.Now,
		window: DefaultMessageWindow,
		log:    logger.WithModule("keypad"),
		digits: make([]byte, 0, ZipLength),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsValidZip reports whether digits is exactly five ASCII decimal digits.
func IsValidZip(digits string) bool {
	if len(digits) != ZipLength {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// PushDigit appends d to the buffer. A full buffer ignores the key.
func (c *Controller) PushDigit(d string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(d) != 1 || d[0] < '0' || d[0] > '9' {
		c.notifyLocked(messageInvalidKey)
		return c.changedLocked(), apperrors.ErrValidationFailed.WithMessage("Key must be a single digit 0-9")
	}
	if len(c.digits) < ZipLength {
		c.digits = append(c.digits, d[0])
	}
	return c.changedLocked(), nil
}

// Backspace drops the last digit. It does nothing on an empty buffer.
func (c *Controller) Backspace() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.digits); n > 0 {
		c.digits = c.digits[:n-1]
	}
	return c.changedLocked()
}

// Clear empties the buffer.
func (c *Controller) Clear() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.digits = c.digits[:0]
	return c.changedLocked()
}

// State returns the current keypad view.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stateLocked()
}

// Notify posts a transient message that replaces any message still showing.
func (c *Controller) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifyLocked(msg)
	c.changedLocked()
}

// Submit saves the buffer as a new entry. On success the buffer resets for the next
// attendee; on a failed save it is kept so the entry can be retried.
func (c *Controller) Submit(ctx context.Context) (*models.Entry, State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	zip := string(c.digits)
	if !IsValidZip(zip) {
		metrics.EntrySubmissions.WithLabelValues("invalid").Inc()
		c.notifyLocked(MessageNeedDigits)
		return nil, c.changedLocked(), apperrors.ErrValidationFailed
	}

	entry, err := c.store.Add(ctx, zip)
	if err != nil {
		metrics.EntrySubmissions.WithLabelValues("failed").Inc()
		c.log.Warn("submit failed", zap.Error(err))
		c.notifyLocked(MessageSaveFailed)
		if !errors.Is(err, apperrors.ErrWriteFailed) && !errors.Is(err, apperrors.ErrStorageUnavailable) {
			err = apperrors.ErrWriteFailed.WithInternal(err)
		}
		return nil, c.changedLocked(), err
	}

	metrics.EntrySubmissions.WithLabelValues("saved").Inc()
	c.notifyLocked(MessageSaved)
	c.digits = c.digits[:0]
	return entry, c.changedLocked(), nil
}

func (c *Controller) notifyLocked(msg string) {
	c.message = msg
	c.messageUntil = c.now().Add(c.window)

	if c.observe == nil {
		return
	}
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.expiry = time.AfterFunc(c.window, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.changedLocked()
	})
}

// changedLocked returns the current state after handing it to the observer.
func (c *Controller) changedLocked() State {
	c.revision++
	state := c.stateLocked()
	if c.observe != nil {
		c.observe(state)
	}
	return state
}

func (c *Controller) stateLocked() State {
	display := string(c.digits) + strings.Repeat(placeholder, ZipLength-len(c.digits))

	state := State{
		Display:       display,
		Digits:        string(c.digits),
		Length:        len(c.digits),
		SubmitEnabled: len(c.digits) == ZipLength,
		Revision:      c.revision,
	}
	if c.message != "" && c.now().Before(c.messageUntil) {
		state.Message = c.message
	}
	return state
}
