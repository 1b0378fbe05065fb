package id

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
type ID [16]byte

func (i ID) Bytes() []byte { return append([]byte(nil), i[:]...) }

func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Millis returns the millisecond timestamp component.
func (i ID) Millis() int64 { return int64(binary.BigEndian.Uint64(i[0:8])) }

func (i ID) seq() uint64 { return binary.BigEndian.Uint64(i[8:16]) }

// Compare orders ids bytewise, which is also chronological.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// Prev returns the id that sorts immediately before i. It reports false for
// the zero id.
func (i ID) Prev() (ID, bool) {
	ms, seq := uint64(i.Millis()), i.seq()
	switch {
	case seq > 0:
		return makeID(int64(ms), seq-1), true
	case ms > 0:
		return makeID(int64(ms-1), math.MaxUint64), true
	default:
		return ID{}, false
	}
}

// FromBytes decodes a 16-byte slice, typically the tail of a storage key.
func FromBytes(b []byte) (ID, bool) {
	var out ID
	if len(b) != len(out) {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

// Generator hands out strictly increasing IDs. Safe for concurrent use.
type Generator struct {
	now func() time.Time

	mu     sync.Mutex
	lastMs int64
	seq    uint64
}

// NewGenerator returns a Generator reading time from now; nil uses time.Now.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Resume makes every later ID sort after last. Stores call it on open with
// the highest persisted key so a clock that moved backwards across restarts
// cannot reorder a lane.
func (g *Generator) Resume(last ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ms := last.Millis(); ms > g.lastMs || (ms == g.lastMs && last.seq() > g.seq) {
		g.lastMs, g.seq = ms, last.seq()
	}
}

// Next returns a new ID. A regressed clock pins to the last millisecond; an
// exhausted sequence rolls the timestamp forward by one.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	switch {
	case ms > g.lastMs:
		g.lastMs, g.seq = ms, 0
	case g.seq == math.MaxUint64:
		g.lastMs, g.seq = g.lastMs+1, 0
	default:
		g.seq++
	}
	return makeID(g.lastMs, g.seq)
}

func makeID(ms int64, seq uint64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[0:8], uint64(ms))
	binary.BigEndian.PutUint64(id[8:16], seq)
	return id
}
