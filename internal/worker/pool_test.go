package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/pipeline"
	"github.com/rzbill/txq/pkg/log"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls map[lane.Priority]int
	fn    func(p lane.Priority, n int, call int) (pipeline.BatchResult, error)
}

func (f *fakeProcessor) ProcessBatch(_ context.Context, p lane.Priority, n int) (pipeline.BatchResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[lane.Priority]int{}
	}
	f.calls[p]++
	call := f.calls[p]
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return pipeline.BatchResult{Lane: p}, nil
	}
	return fn(p, n, call)
}

func (f *fakeProcessor) count(p lane.Priority) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[p]
}

func TestPoolSweepsEveryLane(t *testing.T) {
	proc := &fakeProcessor{}
	pool, err := NewPool(proc, []LaneSchedule{
		{Lane: lane.High, Interval: 5 * time.Millisecond, BatchSize: 5, Workers: 2},
		{Lane: lane.Retry, Interval: 5 * time.Millisecond, BatchSize: 5},
	}, log.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		return proc.count(lane.High) >= 2 && proc.count(lane.Retry) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPoolDrainsFullBatches(t *testing.T) {
	proc := &fakeProcessor{fn: func(p lane.Priority, n, call int) (pipeline.BatchResult, error) {
		if call <= 3 {
			return pipeline.BatchResult{Lane: p, BatchSize: n, Processed: n}, nil
		}
		return pipeline.BatchResult{Lane: p}, nil
	}}
	pool, err := NewPool(proc, []LaneSchedule{{Lane: lane.Standard, Interval: time.Hour, BatchSize: 4}}, log.Nop())
	require.NoError(t, err)

	require.NoError(t, pool.drain(context.Background(), pool.schedules[0], log.Nop()))
	assert.Equal(t, 4, proc.count(lane.Standard), "three full batches then one short one")
}

func TestPoolStopsOnStructuralError(t *testing.T) {
	proc := &fakeProcessor{fn: func(p lane.Priority, _, _ int) (pipeline.BatchResult, error) {
		return pipeline.BatchResult{}, pipeline.ErrLaneNotProcessable
	}}
	pool, err := NewPool(proc, []LaneSchedule{{Lane: lane.High, Interval: time.Millisecond, BatchSize: 1}}, log.Nop())
	require.NoError(t, err)

	err = pool.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrLaneNotProcessable)
}

func TestPoolSurvivesTransientErrors(t *testing.T) {
	proc := &fakeProcessor{fn: func(p lane.Priority, _, call int) (pipeline.BatchResult, error) {
		if call == 1 {
			return pipeline.BatchResult{}, errors.New("pebble: disk busy")
		}
		return pipeline.BatchResult{Lane: p}, nil
	}}
	pool, err := NewPool(proc, []LaneSchedule{{Lane: lane.High, Interval: time.Millisecond, BatchSize: 1}}, log.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()
	require.Eventually(t, func() bool { return proc.count(lane.High) >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestNewPoolValidation(t *testing.T) {
	proc := &fakeProcessor{}
	_, err := NewPool(nil, nil, nil)
	assert.Error(t, err)
	_, err = NewPool(proc, []LaneSchedule{{Lane: lane.DeadLetter, Interval: time.Second, BatchSize: 1}}, nil)
	assert.Error(t, err)
	_, err = NewPool(proc, []LaneSchedule{{Lane: lane.High, BatchSize: 1}}, nil)
	assert.Error(t, err)
	_, err = NewPool(proc, []LaneSchedule{{Lane: lane.High, Interval: time.Second}}, nil)
	assert.Error(t, err)

	pool, err := NewPool(proc, []LaneSchedule{{Lane: lane.High, Interval: time.Second, BatchSize: 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.schedules[0].Workers)
}
