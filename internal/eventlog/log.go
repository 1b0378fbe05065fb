package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
)

// Type names a transition.
type Type string

const (
	Enqueued       Type = "enqueued"
	Succeeded      Type = "succeeded"
	RetryScheduled Type = "retry_scheduled"
	Requeued       Type = "requeued"
	DeadLettered   Type = "dead_lettered"
	Replayed       Type = "replayed"
)

// Event is one journaled transition. Seq is assigned by Append.
type Event struct {
	Seq           uint64     `json:"seq"`
	EntryID       string     `json:"entry_id"`
	Type          Type       `json:"type"`
	Lane          string     `json:"lane"`
	Attempts      int        `json:"attempts"`
	Inline        bool       `json:"inline,omitempty"`
	Error         string     `json:"error,omitempty"`
	FailureClass  string     `json:"failure_class,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	At            time.Time  `json:"at"`
}

// Options configures a Log.
type Options struct {
	Namespace string
	// Retention bounds event age for PurgeExpired; zero keeps everything.
	Retention time.Duration
	Now       func() time.Time
}

// Log provides append-only operations for one namespace.
type Log struct {
	db        *pebblestore.DB
	namespace string
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a Log and loads the last sequence from metadata (if any).
func Open(db *pebblestore.DB, opts Options) (*Log, error) {
	if db == nil {
		return nil, errors.New("eventlog: db is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("eventlog: namespace is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Log{db: db, namespace: opts.Namespace, retention: opts.Retention, now: opts.Now}
	meta, err := db.Get(KeyLogMeta(opts.Namespace))
	switch {
	case err == nil && len(meta) >= 8:
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	case err != nil && !pebblestore.IsNotFound(err):
		return nil, fmt.Errorf("eventlog: load meta: %w", err)
	}
	return l, nil
}

// Append writes events as a single atomic batch and returns their sequences.
// A zero At is stamped with the current time.
func (l *Log) Append(ctx context.Context, events ...Event) ([]uint64, error) {
	if len(events) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	next := l.lastSeq
	seqs := make([]uint64, len(events))
	for i, ev := range events {
		next++
		ev.Seq = next
		if ev.At.IsZero() {
			ev.At = l.now()
		}
		ev.At = ev.At.UTC()
		body, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("eventlog: encode %s: %w", ev.EntryID, err)
		}
		if err := b.Set(KeyLogEntry(l.namespace, next), encodeRecord(ev.At.UnixMilli(), body), nil); err != nil {
			return nil, err
		}
		seqs[i] = next
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], next)
	if err := b.Set(KeyLogMeta(l.namespace), meta[:], nil); err != nil {
		return nil, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	l.lastSeq = next
	return seqs, nil
}

// LastSeq returns the most recently assigned sequence.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}
