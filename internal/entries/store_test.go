package entries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/zipkiosk/internal/database"
	"github.com/charlesng35/zipkiosk/internal/database/testutil"
	apperrors "github.com/charlesng35/zipkiosk/pkg/errors"
)

func newOpenStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	store, err := NewStore(db, opts...)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	return store
}

func TestNewStoreRequiresDB(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	store := newOpenStore(t)

	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Open(context.Background()))
}

func TestOperationsRequireOpen(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	_, err = store.Add(context.Background(), "28202")
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)

	_, err = store.GetAll(context.Background())
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)

	require.ErrorIs(t, store.ClearAll(context.Background()), apperrors.ErrStorageUnavailable)
}

func TestOpenFailsWhenDatabaseIsGone(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)
	require.NoError(t, database.Close(db))

	err = store.Open(context.Background())
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}

func TestAddAssignsIDAndTimestamp(t *testing.T) {
	fixed := time.Date(2026, 10, 14, 15, 4, 5, 678000000, time.UTC)
	store := newOpenStore(t, WithNow(func() time.Time { return fixed }))
	ctx := context.Background()

	first, err := store.Add(ctx, "00501")
	require.NoError(t, err)
	second, err := store.Add(ctx, "28202")
	require.NoError(t, err)

	require.NotZero(t, first.ID)
	require.Greater(t, second.ID, first.ID)
	require.Equal(t, "00501", first.Zip, "leading zeros must survive")
	require.Equal(t, "2026-10-14T15:04:05.678Z", first.Timestamp)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "00501", all[0].Zip)
	require.Equal(t, "28202", all[1].Zip)
}

func TestAddFailsWithWriteFailed(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, database.Close(db))

	_, err = store.Add(context.Background(), "28202")
	require.ErrorIs(t, err, apperrors.ErrWriteFailed)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.NotNil(t, appErr.Internal)
}

func TestClearAllThenGetAllIsEmpty(t *testing.T) {
	store := newOpenStore(t)
	ctx := context.Background()

	for _, zip := range []string{"28202", "28203", "28204"} {
		_, err := store.Add(ctx, zip)
		require.NoError(t, err)
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	require.NoError(t, store.ClearAll(ctx))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.NotNil(t, all)
	require.Empty(t, all)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestClearAllOnEmptyStore(t *testing.T) {
	store := newOpenStore(t)

	require.NoError(t, store.ClearAll(context.Background()))
}
