package eventlog

import (
	"encoding/json"

	"github.com/cockroachdb/pebble"
)

type ReadOptions struct {
	// After skips events with Seq <= After (forward) or >= After (reverse).
	// Zero starts from the oldest (forward) or newest (reverse) event.
	After   uint64
	Limit   int
	Reverse bool
	// EntryID keeps only the events of one entry.
	EntryID string
}

// Read returns up to Limit events and the sequence to pass as After to
// continue, zero when the scan reached the end.
func (l *Log) Read(opts ReadOptions) ([]Event, uint64) {
	low := KeyLogEntry(l.namespace, 0)
	hi := KeyLogEntry(l.namespace, ^uint64(0))
	events := make([]Event, 0, max(1, opts.Limit))

	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return events, 0
	}
	defer iter.Close()

	var ok bool
	switch {
	case opts.Reverse && opts.After == 0:
		ok = iter.Last()
	case opts.Reverse:
		ok = iter.SeekLT(KeyLogEntry(l.namespace, opts.After))
	default:
		ok = iter.SeekGE(KeyLogEntry(l.namespace, opts.After+1))
	}
	step := iter.Next
	if opts.Reverse {
		step = iter.Prev
	}

	var last uint64
	for ; ok; ok = step() {
		if opts.Limit > 0 && len(events) >= opts.Limit {
			return events, last
		}
		last = seqFromKey(iter.Key())
		_, body, valid := decodeRecord(iter.Value())
		if !valid {
			continue
		}
		var ev Event
		if json.Unmarshal(body, &ev) != nil {
			continue
		}
		if opts.EntryID != "" && ev.EntryID != opts.EntryID {
			continue
		}
		events = append(events, ev)
	}
	return events, 0
}
