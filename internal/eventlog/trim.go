package eventlog

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"
)

const trimBatchLimit = 1024

// TrimOlderThan deletes events stamped before cutoff, oldest first, committing
// every trimBatchLimit deletes. It stops at the first event at or after cutoff.
func (l *Log) TrimOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffMs := cutoff.UnixMilli()
	low := KeyLogEntry(l.namespace, 0)
	hi := KeyLogEntry(l.namespace, ^uint64(0))
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	deleted := 0
	b := l.db.NewBatch()
	defer func() { _ = b.Close() }()
	pending := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			break
		}
		// unreadable records carry no usable age and are dropped with the rest
		if ts, valid := recordTime(iter.Value()); valid && ts >= cutoffMs {
			break
		}
		if err := b.Delete(iter.Key(), nil); err != nil {
			return deleted, err
		}
		pending++
		if pending == trimBatchLimit {
			if err := l.db.CommitBatch(ctx, b); err != nil {
				return deleted, err
			}
			_ = b.Close()
			b = l.db.NewBatch()
			deleted += pending
			pending = 0
		}
	}
	if pending > 0 {
		if err := l.db.CommitBatch(ctx, b); err != nil {
			return deleted, err
		}
		deleted += pending
	}
	return deleted, nil
}

// PurgeExpired trims events older than the retention window.
func (l *Log) PurgeExpired(ctx context.Context) (int, error) {
	if l.retention <= 0 {
		return 0, nil
	}
	return l.TrimOlderThan(ctx, l.now().Add(-l.retention))
}
