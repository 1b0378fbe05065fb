package lane

import (
	"context"
	"errors"
)

var (
	// ErrEmpty is returned by Pop when the lane holds no entries.
	ErrEmpty = errors.New("lane: empty")
	// ErrNotFound is returned by Remove when the entry is not in the lane.
	ErrNotFound = errors.New("lane: entry not found")
)

// Store is a set of durable FIFO lanes with TTL-bounded retention.
type Store interface {
	// Push appends e to the tail of the lane named by e.Priority and
	// refreshes that lane's TTL.
	Push(ctx context.Context, e *Entry) error
	// PushFront puts e back at the head of its lane, ahead of every queued
	// entry, and refreshes the lane TTL.
	PushFront(ctx context.Context, e *Entry) error
	// Pop atomically removes and returns the head of lane p.
	Pop(ctx context.Context, p Priority) (*Entry, error)
	Len(ctx context.Context, p Priority) (int, error)
	// Peek returns up to limit entries from the head without removing them.
	Peek(ctx context.Context, p Priority, limit int) ([]*Entry, error)
	Remove(ctx context.Context, p Priority, entryID string) (*Entry, error)
	// MarkDone records that entryID completed outside the lanes; the marker
	// expires with the store TTL.
	MarkDone(ctx context.Context, entryID string) error
	IsDone(ctx context.Context, entryID string) (bool, error)
}

// Purger is implemented by stores that expire data themselves.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}
