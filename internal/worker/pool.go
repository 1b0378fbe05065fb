// Package worker drives periodic ProcessBatch sweeps, one goroutine per lane
// worker slot.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/pipeline"
	"github.com/rzbill/txq/pkg/log"
)

// Processor is the part of pipeline.Manager the pool drives.
type Processor interface {
	ProcessBatch(ctx context.Context, p lane.Priority, batchSize int) (pipeline.BatchResult, error)
}

// LaneSchedule says how often and how hard to sweep one lane.
type LaneSchedule struct {
	Lane      lane.Priority
	Interval  time.Duration
	BatchSize int
	Workers   int
}

// Pool runs every schedule until its context ends or a structural error
// surfaces.
type Pool struct {
	proc      Processor
	schedules []LaneSchedule
	logger    log.Logger
}

// NewPool validates schedules. Workers defaults to 1.
func NewPool(proc Processor, schedules []LaneSchedule, logger log.Logger) (*Pool, error) {
	if proc == nil {
		return nil, errors.New("worker: processor is required")
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	out := make([]LaneSchedule, 0, len(schedules))
	for _, s := range schedules {
		switch {
		case !s.Lane.Valid() || s.Lane == lane.DeadLetter:
			return nil, fmt.Errorf("worker: lane %q cannot be swept", s.Lane)
		case s.Interval <= 0:
			return nil, fmt.Errorf("worker: lane %s needs a positive interval", s.Lane)
		case s.BatchSize <= 0:
			return nil, fmt.Errorf("worker: lane %s needs a positive batch size", s.Lane)
		}
		if s.Workers <= 0 {
			s.Workers = 1
		}
		out = append(out, s)
	}
	return &Pool{proc: proc, schedules: out, logger: logger.With(log.Component("worker"))}, nil
}

// Run blocks until ctx is done (returning nil) or a worker hits a structural
// error (returning it).
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range p.schedules {
		for slot := 0; slot < s.Workers; slot++ {
			s, slot := s, slot
			g.Go(func() error { return p.loop(gctx, s, slot) })
		}
	}
	p.logger.Info("worker pool started", log.Int("schedules", len(p.schedules)))
	err := g.Wait()
	if err != nil {
		p.logger.Error("worker pool stopped", log.Err(err))
		return err
	}
	p.logger.Info("worker pool stopped")
	return nil
}

func (p *Pool) loop(ctx context.Context, s LaneSchedule, slot int) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(slot)))
	logger := p.logger.With(log.Str("lane", s.Lane.String()), log.Int("slot", slot))
	for {
		jitter := time.Duration(rng.Int63n(int64(s.Interval/10 + 1)))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.Interval + jitter):
		}
		if err := p.drain(ctx, s, logger); err != nil {
			return err
		}
	}
}

// drain keeps sweeping while the lane returns full batches.
func (p *Pool) drain(ctx context.Context, s LaneSchedule, logger log.Logger) error {
	for ctx.Err() == nil {
		res, err := p.proc.ProcessBatch(ctx, s.Lane, s.BatchSize)
		if err != nil {
			if structural(err) {
				return fmt.Errorf("worker: lane %s: %w", s.Lane, err)
			}
			logger.Warn("batch failed", log.Err(err))
			return nil
		}
		if res.BatchSize < s.BatchSize || res.CircuitOpen || res.Deferred > 0 || res.Requeued > 0 {
			return nil
		}
	}
	return nil
}

func structural(err error) bool {
	return errors.Is(err, pipeline.ErrUnknownLane) ||
		errors.Is(err, pipeline.ErrLaneNotProcessable) ||
		errors.Is(err, pipeline.ErrInvalidBatchSize)
}
