// Package eventlog is the append-only journal of queue entry transitions:
// enqueued, succeeded, retry scheduled, requeued on an open circuit,
// dead-lettered and replayed.
//
// # Overview
//
// One log per namespace, persisted in Pebble. Keys sort by sequence:
//   - ns/{ns}/events/m           (metadata: lastSeq)
//   - ns/{ns}/events/e/{seq_be8} (events)
//
// Values are stored as: ts_ms(8B BE) | event JSON | crc32c(ts|json). The
// leading timestamp lets retention trims stop at the first young event
// without decoding JSON.
//
// API surface (internal)
//
//	l, _ := eventlog.Open(db, eventlog.Options{Namespace: "default", Retention: 24 * time.Hour})
//	seqs, _ := l.Append(ctx, eventlog.Event{EntryID: id, Type: eventlog.Enqueued, Lane: "high"})
//
//	// newest first, filtered to one entry
//	events, next := l.Read(eventlog.ReadOptions{EntryID: id, Limit: 50, Reverse: true})
//
//	// drop events older than the retention window
//	n, _ := l.PurgeExpired(ctx)
package eventlog
