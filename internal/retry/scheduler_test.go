package retry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/txq/internal/classify"
	"github.com/rzbill/txq/internal/deadletter"
	"github.com/rzbill/txq/internal/lane"
	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
	"github.com/rzbill/txq/pkg/log"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T) (*Scheduler, lane.Store) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	now := func() time.Time { return t0 }
	store, err := lane.NewPebbleStore(db, lane.PebbleOptions{Namespace: "t", TTL: time.Hour, Now: now, Logger: log.Nop()})
	require.NoError(t, err)
	dlq := deadletter.New(store, deadletter.Options{Now: now, Logger: log.Nop()})
	s := NewScheduler(store, dlq, SchedulerOptions{
		Policies: map[lane.Priority]Policy{
			lane.High: {MaxAttempts: 3, BaseDelay: 2 * time.Second, BackoffFactor: 2},
		},
		Now:    now,
		Logger: log.Nop(),
	})
	return s, store
}

func failedEntry(attempts int) *lane.Entry {
	return &lane.Entry{
		ID:               "T1",
		Priority:         lane.High,
		Payload:          json.RawMessage(`{"transaction_id":"T1","amount":500}`),
		Attempts:         attempts,
		MaxAttempts:      3,
		SLATargetSeconds: 2,
		EnqueuedAt:       t0,
	}
}

func TestRetriableFailureGoesToRetryLane(t *testing.T) {
	s, store := newScheduler(t)
	ctx := context.Background()

	d, err := s.HandleFailure(ctx, failedEntry(1), errors.New("503 from upstream"), classify.Retriable)
	require.NoError(t, err)
	assert.Equal(t, ActionRetry, d.Action)
	assert.Equal(t, 2*time.Second, d.Delay)

	e, err := store.Pop(ctx, lane.Retry)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, lane.High, e.OriginalPriority)
	assert.Equal(t, "503 from upstream", e.LastError)
	assert.Equal(t, "retriable", e.FailureClass)
	require.NotNil(t, e.NextAttemptAt)
	assert.True(t, e.NextAttemptAt.Equal(t0.Add(2*time.Second)))
}

func TestBackoffFollowsAttemptCount(t *testing.T) {
	s, _ := newScheduler(t)
	e := failedEntry(2)
	e.Priority = lane.Retry
	e.OriginalPriority = lane.High
	d := s.Decide(e, classify.Retriable)
	assert.Equal(t, 4*time.Second, d.Delay)
}

func TestExhaustedEntryIsDeadLettered(t *testing.T) {
	s, store := newScheduler(t)
	ctx := context.Background()

	d, err := s.HandleFailure(ctx, failedEntry(3), errors.New("timeout"), classify.Retriable)
	require.NoError(t, err)
	assert.Equal(t, ActionDeadLetter, d.Action)
	assert.Equal(t, ErrMaxAttemptsExceeded.Error(), d.Reason)

	n, _ := store.Len(ctx, lane.Retry)
	assert.Zero(t, n)
	e, err := store.Pop(ctx, lane.DeadLetter)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Attempts)
	require.NotNil(t, e.MovedToDeadLetterAt)
}

func TestPermanentFailureSkipsRetries(t *testing.T) {
	s, store := newScheduler(t)
	ctx := context.Background()

	d, err := s.HandleFailure(ctx, failedEntry(1), &classify.StatusError{Code: 404}, classify.Permanent)
	require.NoError(t, err)
	assert.Equal(t, ActionDeadLetter, d.Action)

	e, err := store.Pop(ctx, lane.DeadLetter)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, "permanent", e.FailureClass)
	assert.Equal(t, lane.High, e.OriginalPriority)
}

func TestUnknownLaneUsesDefaultPolicy(t *testing.T) {
	s, _ := newScheduler(t)
	assert.Equal(t, DefaultPolicy(), s.Policy(lane.Standard))
}
