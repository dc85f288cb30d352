package operator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
	"github.com/charlesng35/zipkiosk/pkg/logger"
	"github.com/charlesng35/zipkiosk/pkg/metrics"
)

// ConfirmationCode is the fixed code that authorises a wipe. It guards against accidental
// taps, not against a determined operator.
const ConfirmationCode = "1234"

// Prompts and messages for the wipe flow.
const (
	PromptConfirm     = "Type 1234 to confirm wipe"
	PromptCode        = "Confirm code:"
	MessageCleared    = "All entries cleared"
	MessageCanceled   = "Wipe canceled"
	MessageWipeFailed = "Wipe failed"
)

// WipeState is a step of the wipe flow.
type WipeState string

const (
	WipeIdle                 WipeState = "idle"
	WipeAwaitingConfirmation WipeState = "awaiting_confirmation"
	WipeAwaitingCode         WipeState = "awaiting_code"
	WipeResolved             WipeState = "resolved"
)

// WipeOutcome is how a resolved flow ended.
type WipeOutcome string

const (
	OutcomeNone     WipeOutcome = ""
	OutcomeCleared  WipeOutcome = "cleared"
	OutcomeCanceled WipeOutcome = "canceled"
	OutcomeFailed   WipeOutcome = "failed"
)

var (
	errFlowNotFound = apperrors.ErrNotFound.WithMessage("Wipe flow not found")
	errFlowState    = apperrors.ErrConflict.WithMessage("Wipe flow is not waiting for this step")
)

// EntryClearer removes every stored entry.
type EntryClearer interface {
	ClearAll(ctx context.Context) error
}

// WipeStatus is the observable state of the current flow.
type WipeStatus struct {
	ID      string      `json:"id,omitempty"`
	State   WipeState   `json:"state"`
	Outcome WipeOutcome `json:"outcome,omitempty"`
	Prompt  string      `json:"prompt,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WipeFlow walks the operator through confirmation and code entry before clearing the
// store. Only one flow is tracked; beginning a new one supersedes any pending flow.
type WipeFlow struct {
	clearer  EntryClearer
	notifier Notifier
	newID    func() string
	log      *zap.Logger

	mu      sync.Mutex
	current WipeStatus
}

// NewWipeFlow constructs a WipeFlow. notifier may be nil.
func NewWipeFlow(clearer EntryClearer, notifier Notifier) (*WipeFlow, error) {
	if clearer == nil {
		return nil, errors.New("operator: entry clearer is required")
	}
	return &WipeFlow{
		clearer:  clearer,
		notifier: notifier,
		newID:    uuid.NewString,
		log:      logger.WithModule("operator"),
		current:  WipeStatus{State: WipeIdle},
	}, nil
}

// Status returns the current flow.
func (f *WipeFlow) Status() WipeStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.current
}

// Begin starts a new flow waiting for the yes/no confirmation.
func (f *WipeFlow) Begin() WipeStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pending := f.current; pending.State == WipeAwaitingConfirmation || pending.State == WipeAwaitingCode {
		f.log.Debug("superseding pending wipe flow", zap.String("flow_id", pending.ID))
	}

	f.current = WipeStatus{
		ID:     f.newID(),
		State:  WipeAwaitingConfirmation,
		Prompt: PromptConfirm,
	}
	return f.current
}

// Confirm answers the yes/no step. Declining resolves the flow as canceled.
func (f *WipeFlow) Confirm(id string, ok bool) (WipeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expectLocked(id, WipeAwaitingConfirmation); err != nil {
		return f.current, err
	}

	if !ok {
		f.resolveLocked(OutcomeCanceled, MessageCanceled)
		return f.current, nil
	}

	f.current.State = WipeAwaitingCode
	f.current.Prompt = PromptCode
	return f.current, nil
}

// SubmitCode answers the code step. Only ConfirmationCode clears the store; any other
// value, including an empty one, cancels without touching the entries.
func (f *WipeFlow) SubmitCode(ctx context.Context, id, code string) (WipeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expectLocked(id, WipeAwaitingCode); err != nil {
		return f.current, err
	}

	if code != ConfirmationCode {
		f.resolveLocked(OutcomeCanceled, MessageCanceled)
		return f.current, nil
	}

	if err := f.clearer.ClearAll(ctx); err != nil {
		f.log.Warn("wipe failed", zap.String("flow_id", id), zap.Error(err))
		f.resolveLocked(OutcomeFailed, MessageWipeFailed)
		return f.current, err
	}

	f.log.Info("entries wiped", zap.String("flow_id", id))
	f.resolveLocked(OutcomeCleared, MessageCleared)
	return f.current, nil
}

// Cancel aborts a pending flow.
func (f *WipeFlow) Cancel(id string) (WipeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current.ID == "" || f.current.ID != id {
		return f.current, errFlowNotFound
	}
	if f.current.State != WipeAwaitingConfirmation && f.current.State != WipeAwaitingCode {
		return f.current, errFlowState
	}

	f.resolveLocked(OutcomeCanceled, MessageCanceled)
	return f.current, nil
}

func (f *WipeFlow) expectLocked(id string, state WipeState) error {
	if f.current.ID == "" || f.current.ID != id {
		return errFlowNotFound
	}
	if f.current.State != state {
		return errFlowState
	}
	return nil
}

func (f *WipeFlow) resolveLocked(outcome WipeOutcome, msg string) {
	f.current.State = WipeResolved
	f.current.Outcome = outcome
	f.current.Prompt = ""
	f.current.Message = msg

	metrics.OperatorActions.WithLabelValues("wipe", string(outcome)).Inc()
	if f.notifier != nil {
		f.notifier.Notify(msg)
	}
}
