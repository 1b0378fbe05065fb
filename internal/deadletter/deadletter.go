// Package deadletter parks entries that will not be retried and gives
// operators an explicit way to inspect and replay them.
package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/pkg/log"
)

// Options configures a Handler.
type Options struct {
	Now    func() time.Time
	Logger log.Logger
	// OnMove is called after an entry lands in the dead-letter lane.
	OnMove func(e *lane.Entry, reason string)
	// OnReplay is called after a replayed entry is pushed to its new lane.
	OnReplay func(e *lane.Entry)
}

// Handler moves entries into the dead-letter lane. Nothing in the pipeline
// reads that lane; only Replay takes entries back out.
type Handler struct {
	store    lane.Store
	now      func() time.Time
	logger   log.Logger
	onMove   func(e *lane.Entry, reason string)
	onReplay func(e *lane.Entry)
}

// New returns a Handler writing to store.
func New(store lane.Store, opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	return &Handler{
		store:    store,
		now:      opts.Now,
		logger:   opts.Logger.With(log.Component("deadletter")),
		onMove:   opts.OnMove,
		onReplay: opts.OnReplay,
	}
}

// Move stamps e and appends it to the dead-letter lane.
func (h *Handler) Move(ctx context.Context, e *lane.Entry, reason string) error {
	from := e.Priority
	if e.OriginalPriority == "" {
		e.OriginalPriority = from
	}
	now := h.now().UTC()
	e.Priority = lane.DeadLetter
	e.MovedToDeadLetterAt = &now
	e.NextAttemptAt = nil
	if e.LastError == "" {
		e.LastError = reason
	}
	if err := h.store.Push(ctx, e); err != nil {
		return fmt.Errorf("deadletter: move %s: %w", e.ID, err)
	}
	h.logger.Warn("entry dead-lettered",
		log.Str("entry_id", e.ID),
		log.Str("from", from.String()),
		log.Int("attempts", e.Attempts),
		log.Str("reason", reason),
		log.Str("last_error", e.LastError),
	)
	if h.onMove != nil {
		h.onMove(e, reason)
	}
	return nil
}

// List returns up to limit dead-lettered entries, oldest first. limit <= 0
// returns all of them.
func (h *Handler) List(ctx context.Context, limit int) ([]*lane.Entry, error) {
	return h.store.Peek(ctx, lane.DeadLetter, limit)
}

// Len returns the dead-letter lane length.
func (h *Handler) Len(ctx context.Context) (int, error) {
	return h.store.Len(ctx, lane.DeadLetter)
}

// ReplayResult reports what Replay did.
type ReplayResult struct {
	Replayed []string `json:"replayed"`
	Missing  []string `json:"missing,omitempty"`
}

// Replay moves entries back into target with a fresh attempt budget. With no
// ids it replays the entire lane as it stood when the call began.
func (h *Handler) Replay(ctx context.Context, ids []string, target lane.Priority) (ReplayResult, error) {
	var res ReplayResult
	if !target.Enqueueable() {
		return res, fmt.Errorf("deadletter: cannot replay into %q", target)
	}

	if len(ids) == 0 {
		n, err := h.store.Len(ctx, lane.DeadLetter)
		if err != nil {
			return res, err
		}
		for i := 0; i < n; i++ {
			e, err := h.store.Pop(ctx, lane.DeadLetter)
			if errors.Is(err, lane.ErrEmpty) {
				break
			}
			if err != nil {
				return res, err
			}
			if err := h.requeue(ctx, e, target); err != nil {
				return res, err
			}
			res.Replayed = append(res.Replayed, e.ID)
		}
		return res, nil
	}

	for _, id := range ids {
		e, err := h.store.Remove(ctx, lane.DeadLetter, id)
		if errors.Is(err, lane.ErrNotFound) {
			res.Missing = append(res.Missing, id)
			continue
		}
		if err != nil {
			return res, err
		}
		if err := h.requeue(ctx, e, target); err != nil {
			return res, err
		}
		res.Replayed = append(res.Replayed, e.ID)
	}
	return res, nil
}

func (h *Handler) requeue(ctx context.Context, e *lane.Entry, target lane.Priority) error {
	parked := e.Clone()
	e.Priority = target
	e.OriginalPriority = target
	e.Attempts = 0
	e.NextAttemptAt = nil
	e.MovedToDeadLetterAt = nil
	if err := h.store.Push(ctx, e); err != nil {
		// put it back so a failed replay never loses the entry
		if perr := h.store.Push(ctx, parked); perr != nil {
			return fmt.Errorf("deadletter: replay %s: %w (restore failed: %v)", e.ID, err, perr)
		}
		return fmt.Errorf("deadletter: replay %s: %w", e.ID, err)
	}
	h.logger.Info("entry replayed", log.Str("entry_id", e.ID), log.Str("to", target.String()))
	if h.onReplay != nil {
		h.onReplay(e)
	}
	return nil
}
