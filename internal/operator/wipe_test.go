package operator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/zipkiosk/internal/database/testutil"
	"github.com/charlesng35/zipkiosk/internal/entries"
	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
)

type countingClearer struct {
	calls int
	err   error
}

func (c *countingClearer) ClearAll(context.Context) error {
	c.calls++
	return c.err
}

func newFlow(t *testing.T, clearer EntryClearer, notifier Notifier) *WipeFlow {
	t.Helper()
	flow, err := NewWipeFlow(clearer, notifier)
	require.NoError(t, err)
	return flow
}

func TestWipeFlowClearsOnlyWithCode(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store, err := entries.NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Open(ctx))

	for _, zip := range []string{"28202", "28203"} {
		_, err := store.Add(ctx, zip)
		require.NoError(t, err)
	}

	log := &messageLog{}
	flow := newFlow(t, store, log)

	for _, code := range []string{"", "0000", "12345", " 1234", "1234 ", "abcd"} {
		status := flow.Begin()
		status, err := flow.Confirm(status.ID, true)
		require.NoError(t, err)
		require.Equal(t, WipeAwaitingCode, status.State)
		require.Equal(t, PromptCode, status.Prompt)

		status, err = flow.SubmitCode(ctx, status.ID, code)
		require.NoError(t, err)
		require.Equalf(t, OutcomeCanceled, status.Outcome, "code %q", code)
		require.Equal(t, MessageCanceled, log.last())

		count, err := store.Count(ctx)
		require.NoError(t, err)
		require.EqualValuesf(t, 2, count, "code %q must leave entries intact", code)
	}

	status := flow.Begin()
	status, err = flow.Confirm(status.ID, true)
	require.NoError(t, err)
	status, err = flow.SubmitCode(ctx, status.ID, ConfirmationCode)
	require.NoError(t, err)
	require.Equal(t, WipeResolved, status.State)
	require.Equal(t, OutcomeCleared, status.Outcome)
	require.Equal(t, MessageCleared, log.last())

	remaining, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestWipeFlowDeclineCancels(t *testing.T) {
	clearer := &countingClearer{}
	log := &messageLog{}
	flow := newFlow(t, clearer, log)

	status := flow.Begin()
	require.Equal(t, WipeAwaitingConfirmation, status.State)
	require.Equal(t, PromptConfirm, status.Prompt)
	require.NotEmpty(t, status.ID)

	status, err := flow.Confirm(status.ID, false)
	require.NoError(t, err)
	require.Equal(t, WipeResolved, status.State)
	require.Equal(t, OutcomeCanceled, status.Outcome)
	require.Equal(t, MessageCanceled, log.last())
	require.Zero(t, clearer.calls)
}

func TestWipeFlowRejectsOutOfOrderSteps(t *testing.T) {
	clearer := &countingClearer{}
	flow := newFlow(t, clearer, nil)
	ctx := context.Background()

	_, err := flow.Confirm("missing", true)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	status := flow.Begin()

	_, err = flow.SubmitCode(ctx, status.ID, ConfirmationCode)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	require.Zero(t, clearer.calls, "code before confirmation must not clear")

	_, err = flow.Confirm("other-id", true)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	status, err = flow.Confirm(status.ID, true)
	require.NoError(t, err)

	_, err = flow.Confirm(status.ID, true)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestWipeFlowBeginSupersedesPendingFlow(t *testing.T) {
	clearer := &countingClearer{}
	flow := newFlow(t, clearer, nil)
	ctx := context.Background()

	stale := flow.Begin()
	stale, err := flow.Confirm(stale.ID, true)
	require.NoError(t, err)

	fresh := flow.Begin()
	require.NotEqual(t, stale.ID, fresh.ID)

	_, err = flow.SubmitCode(ctx, stale.ID, ConfirmationCode)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Zero(t, clearer.calls)
}

func TestWipeFlowCancel(t *testing.T) {
	clearer := &countingClearer{}
	log := &messageLog{}
	flow := newFlow(t, clearer, log)

	status := flow.Begin()
	status, err := flow.Confirm(status.ID, true)
	require.NoError(t, err)

	status, err = flow.Cancel(status.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeCanceled, status.Outcome)
	require.Equal(t, MessageCanceled, log.last())

	_, err = flow.Cancel(status.ID)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestWipeFlowClearFailure(t *testing.T) {
	clearer := &countingClearer{err: apperrors.ErrWriteFailed.WithInternal(errors.New("locked"))}
	log := &messageLog{}
	flow := newFlow(t, clearer, log)
	ctx := context.Background()

	status := flow.Begin()
	status, err := flow.Confirm(status.ID, true)
	require.NoError(t, err)

	status, err = flow.SubmitCode(ctx, status.ID, ConfirmationCode)
	require.ErrorIs(t, err, apperrors.ErrWriteFailed)
	require.Equal(t, OutcomeFailed, status.Outcome)
	require.Equal(t, MessageWipeFailed, log.last())
	require.Equal(t, 1, clearer.calls)
}

func TestNewWipeFlowRequiresClearer(t *testing.T) {
	_, err := NewWipeFlow(nil, nil)
	require.Error(t, err)
}
