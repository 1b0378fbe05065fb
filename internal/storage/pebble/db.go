package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode selects when committed writes reach the WAL on disk.
type FsyncMode int

const (
	// FsyncModeUnspecified group-commits with the default interval.
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs every commit. An acknowledged enqueue survives a crash.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever leaves syncing to Pebble. Tests and throwaway data only.
	FsyncModeNever
)

const defaultSyncInterval = 5 * time.Millisecond

var fsyncNames = map[FsyncMode]string{
	FsyncModeAlways:   "always",
	FsyncModeInterval: "interval",
	FsyncModeNever:    "never",
}

func (m FsyncMode) String() string {
	if s, ok := fsyncNames[m]; ok {
		return s
	}
	return "unspecified"
}

// ParseFsyncMode accepts always, interval or never.
func ParseFsyncMode(s string) (FsyncMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range fsyncNames {
		if name == s {
			return m, nil
		}
	}
	return FsyncModeUnspecified, fmt.Errorf("pebble: unknown fsync mode %q (always|interval|never)", s)
}

// Options configures Open.
type Options struct {
	DataDir       string
	Fsync         FsyncMode
	FsyncInterval time.Duration
	// PebbleOptions is passed through to pebble.Open; nil uses Pebble defaults.
	PebbleOptions *pebble.Options
	Metrics       MetricsHook
}

// MetricsHook observes point reads, point writes and batch commits.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveWrite(time.Duration, int)            {}
func (noopMetrics) ObserveRead(time.Duration, int)             {}
func (noopMetrics) ObserveBatchCommit(time.Duration, int, int) {}

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = pebble.ErrNotFound

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool { return errors.Is(err, pebble.ErrNotFound) }

// DB is the Pebble handle shared by lane stores, the event journal and
// namespace metadata.
type DB struct {
	inner   *pebble.DB
	sync    pebble.WriteOptions
	metrics MetricsHook
}

// Open creates or opens the database under opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	wo := *pebble.NoSync
	switch opts.Fsync {
	case FsyncModeAlways:
		wo = *pebble.Sync
	case FsyncModeNever:
	default:
		interval := opts.FsyncInterval
		if interval <= 0 {
			interval = defaultSyncInterval
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
		wo = *pebble.Sync
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", opts.DataDir, err)
	}
	db := &DB{inner: inner, sync: wo, metrics: opts.Metrics}
	if db.metrics == nil {
		db.metrics = noopMetrics{}
	}
	return db, nil
}

// Close is safe on a nil DB.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

func (db *DB) NewBatch() *pebble.Batch { return db.inner.NewBatch() }

// CommitBatch commits b with the configured sync policy. A done ctx aborts
// before anything is written.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	size, ops := b.Len(), int(b.Count())
	if err := b.Commit(&db.sync); err != nil {
		return err
	}
	db.metrics.ObserveBatchCommit(time.Since(start), ops, size)
	return nil
}

// Set writes one key through a single-op batch.
func (db *DB) Set(key, value []byte) error {
	start := time.Now()
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		return err
	}
	db.metrics.ObserveWrite(time.Since(start), len(key)+len(value))
	return nil
}

// Get returns a copy of the value stored at key.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(out))
	return out, nil
}

func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
