package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/txq/internal/lane"
	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
	"github.com/rzbill/txq/pkg/log"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newHandler(t *testing.T) (*Handler, lane.Store, *[]string) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	now := func() time.Time { return t0 }
	store, err := lane.NewPebbleStore(db, lane.PebbleOptions{Namespace: "t", Now: now, Logger: log.Nop()})
	require.NoError(t, err)
	var moved []string
	h := New(store, Options{Now: now, Logger: log.Nop(), OnMove: func(e *lane.Entry, reason string) {
		moved = append(moved, e.ID+":"+reason)
	}})
	return h, store, &moved
}

func entry(id string, attempts int) *lane.Entry {
	return &lane.Entry{
		ID:          id,
		Priority:    lane.Retry,
		Payload:     json.RawMessage(`{}`),
		Attempts:    attempts,
		MaxAttempts: 3,
		EnqueuedAt:  t0,
	}
}

func TestMoveStampsEntry(t *testing.T) {
	h, store, moved := newHandler(t)
	ctx := context.Background()
	e := entry("a", 3)
	next := t0.Add(time.Minute)
	e.NextAttemptAt = &next

	require.NoError(t, h.Move(ctx, e, "max attempts exceeded"))

	got, err := store.Pop(ctx, lane.DeadLetter)
	require.NoError(t, err)
	assert.Equal(t, lane.DeadLetter, got.Priority)
	assert.Equal(t, lane.Retry, got.OriginalPriority)
	require.NotNil(t, got.MovedToDeadLetterAt)
	assert.True(t, got.MovedToDeadLetterAt.Equal(t0))
	assert.Nil(t, got.NextAttemptAt)
	assert.Equal(t, "max attempts exceeded", got.LastError)
	assert.Equal(t, []string{"a:max attempts exceeded"}, *moved)
}

func TestListAndLen(t *testing.T) {
	h, _, _ := newHandler(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Move(ctx, entry(fmt.Sprintf("e%d", i), 3), "x"))
	}
	n, err := h.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e0", list[0].ID)

	n, _ = h.Len(ctx)
	assert.Equal(t, 3, n, "listing must not consume entries")
}

func TestReplaySelected(t *testing.T) {
	h, store, _ := newHandler(t)
	ctx := context.Background()
	require.NoError(t, h.Move(ctx, entry("a", 3), "x"))
	require.NoError(t, h.Move(ctx, entry("b", 3), "x"))

	res, err := h.Replay(ctx, []string{"b", "zzz"}, lane.Standard)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Replayed)
	assert.Equal(t, []string{"zzz"}, res.Missing)

	e, err := store.Pop(ctx, lane.Standard)
	require.NoError(t, err)
	assert.Equal(t, "b", e.ID)
	assert.Zero(t, e.Attempts)
	assert.Nil(t, e.MovedToDeadLetterAt)
	assert.Equal(t, lane.Standard, e.Priority)

	n, _ := h.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestReplayAll(t *testing.T) {
	h, store, _ := newHandler(t)
	ctx := context.Background()
	require.NoError(t, h.Move(ctx, entry("a", 3), "x"))
	require.NoError(t, h.Move(ctx, entry("b", 1), "permanent failure"))

	res, err := h.Replay(ctx, nil, lane.High)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Replayed)
	n, _ := store.Len(ctx, lane.High)
	assert.Equal(t, 2, n)
	n, _ = h.Len(ctx)
	assert.Zero(t, n)
}

func TestReplayRejectsInternalLanes(t *testing.T) {
	h, _, _ := newHandler(t)
	_, err := h.Replay(context.Background(), nil, lane.Retry)
	require.Error(t, err)
}

func TestReplayHook(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := lane.NewPebbleStore(db, lane.PebbleOptions{Namespace: "t", Logger: log.Nop()})
	require.NoError(t, err)
	var replayed []string
	h := New(store, Options{Logger: log.Nop(), OnReplay: func(e *lane.Entry) {
		replayed = append(replayed, e.ID+"@"+e.Priority.String())
	}})
	ctx := context.Background()
	require.NoError(t, h.Move(ctx, entry("a", 3), "x"))

	_, err = h.Replay(ctx, []string{"a", "missing"}, lane.High)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@high"}, replayed)
}
