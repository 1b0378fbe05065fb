package breaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/txq/pkg/log"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errDownstream = errors.New("downstream unavailable")

func newTestBreaker(threshold int, recovery time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("firs", Options{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
		Now:              clock.Now,
		Logger:           log.Nop(),
	})
	return b, clock
}

func fail(context.Context) error    { return errDownstream }
func succeed(context.Context) error { return nil }

func TestOpensAfterThresholdAndFailsFast(t *testing.T) {
	b, _ := newTestBreaker(5, 60*time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, b.Call(ctx, time.Second, fail), errDownstream)
	}
	assert.Equal(t, Open, b.State())

	var calls int32
	err := b.Call(ctx, time.Second, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "firs", openErr.Name)
	assert.Zero(t, atomic.LoadInt32(&calls), "executor must not run while open")
}

func TestHalfOpenTrialSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(5, 60*time.Second)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Call(ctx, time.Second, fail)
	}

	clock.Advance(59 * time.Second)
	assert.True(t, b.Blocked())
	require.ErrorIs(t, b.Call(ctx, time.Second, succeed), ErrOpen)

	clock.Advance(time.Second)
	assert.False(t, b.Blocked())
	require.NoError(t, b.Call(ctx, time.Second, succeed))

	snap := b.Snapshot()
	assert.Equal(t, "closed", snap.State)
	assert.Zero(t, snap.FailureCount)
	assert.Nil(t, snap.OpenedAt)
}

func TestHalfOpenTrialFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(2, 10*time.Second)
	ctx := context.Background()
	_ = b.Call(ctx, 0, fail)
	_ = b.Call(ctx, 0, fail)
	require.Equal(t, Open, b.State())

	clock.Advance(10 * time.Second)
	require.ErrorIs(t, b.Call(ctx, 0, fail), errDownstream)
	assert.Equal(t, Open, b.State())

	snap := b.Snapshot()
	require.NotNil(t, snap.OpenedAt)
	assert.True(t, clock.Now().Equal(*snap.OpenedAt))
	require.ErrorIs(t, b.Call(ctx, 0, succeed), ErrOpen)
}

func TestHalfOpenAdmitsSingleTrial(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	ctx := context.Background()
	_ = b.Call(ctx, 0, fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	trialDone := make(chan error, 1)
	go func() {
		trialDone <- b.Call(ctx, 0, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.Equal(t, HalfOpen, b.State())
	require.ErrorIs(t, b.Call(ctx, 0, succeed), ErrOpen, "second caller must be rejected while the trial runs")

	close(release)
	require.NoError(t, <-trialDone)
	assert.Equal(t, Closed, b.State())
}

func TestTimeoutCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	err := b.Call(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Open, b.State())
}

func TestTimeoutReturnsEvenIfCallIgnoresContext(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := b.Call(context.Background(), 20*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, b.Snapshot().FailureCount)
}

func TestCancellationCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Call(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, b.Snapshot().FailureCount)
}

func TestPanicIsRecoveredAsFailure(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	err := b.Call(context.Background(), time.Second, func(context.Context) error { panic("boom") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, b.Snapshot().FailureCount)
}

func TestClosedSuccessDecaysFailureCount(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	ctx := context.Background()
	_ = b.Call(ctx, 0, fail)
	_ = b.Call(ctx, 0, fail)
	require.NoError(t, b.Call(ctx, 0, succeed))
	assert.Equal(t, 1, b.Snapshot().FailureCount)
	require.NoError(t, b.Call(ctx, 0, succeed))
	require.NoError(t, b.Call(ctx, 0, succeed))
	assert.Zero(t, b.Snapshot().FailureCount)
}

func TestStateChangeHook(t *testing.T) {
	var transitions []string
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New("downstream", Options{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		Now:              clock.Now,
		Logger:           log.Nop(),
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()
	_ = b.Call(ctx, 0, fail)
	clock.Advance(time.Second)
	_ = b.Call(ctx, 0, succeed)
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestConcurrentFailuresAreAllCounted(t *testing.T) {
	b, _ := newTestBreaker(1000, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Call(context.Background(), 0, fail)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Snapshot().FailureCount)
}
