package eventlog

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func openDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return db
}

func newTestLog(t *testing.T, c *clock) *Log {
	t.Helper()
	db := openDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	l, err := Open(db, Options{Namespace: "ns", Retention: time.Hour, Now: c.now})
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func TestAppendAssignsSequential(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := newTestLog(t, c)
	seqs, err := l.Append(context.Background(),
		Event{EntryID: "a", Type: Enqueued, Lane: "high"},
		Event{EntryID: "a", Type: Succeeded, Lane: "high", Attempts: 1},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("unexpected seqs: %v", seqs)
	}
	events, next := l.Read(ReadOptions{})
	if len(events) != 2 || next != 0 {
		t.Fatalf("want 2 events and no continuation, got %d next=%d", len(events), next)
	}
	if events[0].Seq != 1 || events[1].Type != Succeeded || !events[0].At.Equal(c.t) {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestAppendDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	l, err := Open(db, Options{Namespace: "ns"})
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := l.Append(context.Background(), Event{EntryID: "x", Type: Enqueued}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db = openDB(t, dir)
	defer db.Close()
	l, err = Open(db, Options{Namespace: "ns"})
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	if l.LastSeq() != 1 {
		t.Fatalf("expected lastSeq 1 after reopen, got %d", l.LastSeq())
	}
	seqs, err := l.Append(context.Background(), Event{EntryID: "y", Type: Enqueued})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seqs[0] != 2 {
		t.Fatalf("sequence should continue, got %d", seqs[0])
	}
}

func TestReadPagesAndFilters(t *testing.T) {
	l := newTestLog(t, &clock{t: time.Unix(1_700_000_000, 0)})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := "a"
		if i%2 == 1 {
			id = "b"
		}
		if _, err := l.Append(ctx, Event{EntryID: id, Type: Enqueued}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page, next := l.Read(ReadOptions{Limit: 2})
	if len(page) != 2 || page[0].Seq != 1 || next != 2 {
		t.Fatalf("first page: %+v next=%d", page, next)
	}
	page, next = l.Read(ReadOptions{After: next, Limit: 2})
	if len(page) != 2 || page[0].Seq != 3 || next != 4 {
		t.Fatalf("second page: %+v next=%d", page, next)
	}
	page, next = l.Read(ReadOptions{After: next, Limit: 2})
	if len(page) != 1 || page[0].Seq != 5 || next != 0 {
		t.Fatalf("last page: %+v next=%d", page, next)
	}

	rev, _ := l.Read(ReadOptions{Reverse: true, Limit: 2})
	if len(rev) != 2 || rev[0].Seq != 5 || rev[1].Seq != 4 {
		t.Fatalf("reverse: %+v", rev)
	}
	rev, _ = l.Read(ReadOptions{Reverse: true, After: 4})
	if len(rev) != 3 || rev[0].Seq != 3 {
		t.Fatalf("reverse after 4: %+v", rev)
	}

	only, _ := l.Read(ReadOptions{EntryID: "b"})
	if len(only) != 2 || only[0].Seq != 2 || only[1].Seq != 4 {
		t.Fatalf("filtered: %+v", only)
	}
}

func TestPurgeExpiredKeepsRecentEvents(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := newTestLog(t, c)
	ctx := context.Background()
	if _, err := l.Append(ctx, Event{EntryID: "old", Type: Enqueued}); err != nil {
		t.Fatalf("append: %v", err)
	}
	c.t = c.t.Add(2 * time.Hour)
	if _, err := l.Append(ctx, Event{EntryID: "new", Type: Enqueued}); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := l.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	events, _ := l.Read(ReadOptions{})
	if len(events) != 1 || events[0].EntryID != "new" {
		t.Fatalf("unexpected survivors: %+v", events)
	}
	if n, _ := l.PurgeExpired(ctx); n != 0 {
		t.Fatalf("second purge should be a no-op, removed %d", n)
	}
}

func TestRecordRejectsCorruption(t *testing.T) {
	rec := encodeRecord(42, []byte(`{"a":1}`))
	ts, body, ok := decodeRecord(rec)
	if !ok || ts != 42 || string(body) != `{"a":1}` {
		t.Fatalf("decode: ts=%d body=%q ok=%v", ts, body, ok)
	}
	rec[9] ^= 0xff
	if _, _, ok := decodeRecord(rec); ok {
		t.Fatalf("corrupted record should not decode")
	}
	if _, ok := recordTime(rec); !ok {
		t.Fatalf("timestamp should still be readable")
	}
}

func TestOpenRequiresNamespace(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	if _, err := Open(db, Options{}); err == nil {
		t.Fatalf("expected error without namespace")
	}
}
