package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndGetByBuildID(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	started, err := NewBuildStarted("b1", BuildStartedPayload{Trigger: "cli"})
	require.NoError(t, err)
	started.EventMetadata = map[string]string{"host": "ci"}
	require.NoError(t, store.Append(ctx, started))

	other, err := NewBuildStarted("b2", BuildStartedPayload{Trigger: "schedule"})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, other))

	failed, err := NewAssetFailed("b1", AssetFailedPayload{Path: "mobs/a.html", Error: "boom"})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, failed))

	events, err := store.GetByBuildID(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeBuildStarted, events[0].Type())
	assert.Equal(t, "ci", events[0].Metadata()["host"])
	assert.JSONEq(t, `{"trigger":"cli"}`, string(events[0].Payload()))
	assert.Equal(t, TypeAssetFailed, events[1].Type())
	assert.Less(t, events[0].ID(), events[1].ID())
}

func TestGetRange(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		ev := &BaseEvent{EventBuildID: id, EventType: TypeBuildStarted, EventTimestamp: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.Append(ctx, ev))
	}

	events, err := store.GetRange(ctx, base.Add(30*time.Minute), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "mid", events[0].BuildID())
	assert.Equal(t, "new", events[1].BuildID())
	assert.True(t, events[0].Timestamp().Equal(base.Add(time.Hour)))
}

func TestPersistentStoreReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	ev, err := NewBuildStarted("b1", BuildStartedPayload{Trigger: "cli"})
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), ev))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	events, err := reopened.GetByBuildID(t.Context(), "b1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestQueryAfterCloseIsClassified(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.GetByBuildID(t.Context(), "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventQueryFailed)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryEventStore, ce.Category())
}
