package lane

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rzbill/txq/pkg/log"
)

// Sweeper periodically purges expired lanes and done markers.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	logger   log.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSweeper returns a stopped sweeper. interval defaults to one minute.
func NewSweeper(p Purger, interval time.Duration, logger log.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Sweeper{purger: p, interval: interval, logger: logger.With(log.Component("lane.sweeper"))}
}

// Start launches the background loop; calling it twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

func (s *Sweeper) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-stop:
			return
		case <-time.After(s.interval + time.Duration(rng.Int63n(int64(s.interval/10+1)))):
			s.SweepOnce(context.Background())
		}
	}
}

// SweepOnce runs a single purge pass.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Warn("purge expired failed", log.Err(err))
		return n
	}
	if n > 0 {
		s.logger.Debug("purged expired lane data", log.Int("removed", n))
	}
	return n
}

// Stop halts the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
