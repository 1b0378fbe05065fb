package lane

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
	"github.com/rzbill/txq/pkg/id"
	"github.com/rzbill/txq/pkg/log"
)

// PebbleOptions configures a PebbleStore.
type PebbleOptions struct {
	Namespace string
	// TTL bounds how long a lane survives without writes. Zero disables expiry.
	TTL    time.Duration
	Now    func() time.Time
	Logger log.Logger
}

// PebbleStore keeps lanes in a local Pebble database.
type PebbleStore struct {
	db     *pebblestore.DB
	ns     string
	ttl    time.Duration
	now    func() time.Time
	gen    *id.Generator
	logger log.Logger

	// one lock per lane serializes pop/push/remove and the meta counter
	locks  map[Priority]*sync.Mutex
	doneMu sync.Mutex
}

// NewPebbleStore opens the lane keyspace for namespace on db.
func NewPebbleStore(db *pebblestore.DB, opts PebbleOptions) (*PebbleStore, error) {
	if db == nil {
		return nil, errors.New("lane: nil pebble db")
	}
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	s := &PebbleStore{
		db:     db,
		ns:     opts.Namespace,
		ttl:    opts.TTL,
		now:    opts.Now,
		gen:    id.NewGenerator(opts.Now),
		logger: opts.Logger.With(log.Component("lane.pebble"), log.Str("namespace", opts.Namespace)),
		locks:  make(map[Priority]*sync.Mutex, len(All)),
	}
	for _, p := range All {
		s.locks[p] = &sync.Mutex{}
		if err := s.resumeSeq(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// resumeSeq seeds the id generator from the newest key in lane p.
func (s *PebbleStore) resumeSeq(p Priority) error {
	lo, hi := keyRange(EntryPrefix(s.ns, p))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return fmt.Errorf("lane: scan %s: %w", p, err)
	}
	defer iter.Close()
	if iter.Last() {
		if seq, ok := seqFromEntryKey(iter.Key()); ok {
			s.gen.Resume(seq)
		}
	}
	return nil
}

func (s *PebbleStore) lock(p Priority) (func(), error) {
	mu, ok := s.locks[p]
	if !ok {
		return nil, fmt.Errorf("lane: unknown priority %q", p)
	}
	mu.Lock()
	return mu.Unlock, nil
}

func (s *PebbleStore) nowMs() int64 { return s.now().UnixMilli() }

func (s *PebbleStore) readMeta(p Priority) (laneMeta, error) {
	b, err := s.db.Get(MetaKey(s.ns, p))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return laneMeta{}, nil
		}
		return laneMeta{}, err
	}
	return decodeMeta(b), nil
}

// dropLane queues deletion of every key of lane p into b.
func (s *PebbleStore) dropLane(b *pebble.Batch, p Priority) error {
	lo, hi := keyRange(lanePrefix(s.ns, p))
	return b.DeleteRange(lo, hi, nil)
}

// Push appends e to its lane and refreshes the lane TTL.
func (s *PebbleStore) Push(ctx context.Context, e *Entry) error {
	return s.push(ctx, e, false)
}

// PushFront keys e just below the current head so the next Pop returns it.
func (s *PebbleStore) PushFront(ctx context.Context, e *Entry) error {
	return s.push(ctx, e, true)
}

func (s *PebbleStore) push(ctx context.Context, e *Entry, front bool) error {
	unlock, err := s.lock(e.Priority)
	if err != nil {
		return err
	}
	defer unlock()

	val, err := encodeEntry(e)
	if err != nil {
		return err
	}
	meta, err := s.readMeta(e.Priority)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	nowMs := s.nowMs()
	expired := meta.expired(nowMs)
	if expired {
		if err := s.dropLane(b, e.Priority); err != nil {
			return err
		}
		meta = laneMeta{}
	}

	seq := s.gen.Next()
	if front && !expired {
		head, ok, err := s.headSeq(e.Priority)
		if err != nil {
			return err
		}
		if ok {
			if prev, ok := head.Prev(); ok {
				seq = prev
			}
		}
	}
	if err := b.Set(EntryKey(s.ns, e.Priority, seq), val, nil); err != nil {
		return err
	}
	if err := b.Set(IndexKey(s.ns, e.Priority, e.ID), seq.Bytes(), nil); err != nil {
		return err
	}
	meta.count++
	if s.ttl > 0 {
		meta.expiresMs = nowMs + s.ttl.Milliseconds()
	}
	if err := b.Set(MetaKey(s.ns, e.Priority), meta.encode(), nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// headSeq returns the id of the oldest key in lane p.
func (s *PebbleStore) headSeq(p Priority) (id.ID, bool, error) {
	lo, hi := keyRange(EntryPrefix(s.ns, p))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return id.ID{}, false, fmt.Errorf("lane: scan %s: %w", p, err)
	}
	defer iter.Close()
	if !iter.First() {
		return id.ID{}, false, nil
	}
	seq, ok := seqFromEntryKey(iter.Key())
	return seq, ok, nil
}

// Pop removes and returns the oldest entry in lane p.
func (s *PebbleStore) Pop(ctx context.Context, p Priority) (*Entry, error) {
	unlock, err := s.lock(p)
	if err != nil {
		return nil, err
	}
	defer unlock()

	meta, err := s.readMeta(p)
	if err != nil {
		return nil, err
	}
	if meta.expired(s.nowMs()) {
		if err := s.purgeLane(ctx, p); err != nil {
			return nil, err
		}
		return nil, ErrEmpty
	}

	lo, hi := keyRange(EntryPrefix(s.ns, p))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	var popped *Entry
	dropped := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		k := append([]byte(nil), iter.Key()...)
		e, okDec := decodeEntry(iter.Value())
		if err := b.Delete(k, nil); err != nil {
			return nil, err
		}
		if !okDec {
			// corrupt record: drop it and keep scanning
			dropped++
			continue
		}
		if err := b.Delete(IndexKey(s.ns, p, e.ID), nil); err != nil {
			return nil, err
		}
		popped = e
		break
	}
	if popped == nil && dropped == 0 {
		return nil, ErrEmpty
	}

	removed := uint64(dropped)
	if popped != nil {
		removed++
	}
	if meta.count < removed {
		meta.count = 0
	} else {
		meta.count -= removed
	}
	if err := b.Set(MetaKey(s.ns, p), meta.encode(), nil); err != nil {
		return nil, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	if dropped > 0 {
		s.logger.Warn("dropped corrupt lane records", log.Str("lane", p.String()), log.Int("count", dropped))
	}
	if popped == nil {
		return nil, ErrEmpty
	}
	return popped, nil
}

// Len returns the number of entries in lane p.
func (s *PebbleStore) Len(_ context.Context, p Priority) (int, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("lane: unknown priority %q", p)
	}
	meta, err := s.readMeta(p)
	if err != nil {
		return 0, err
	}
	if meta.expired(s.nowMs()) {
		return 0, nil
	}
	return int(meta.count), nil
}

// Peek returns up to limit entries from the head of lane p.
func (s *PebbleStore) Peek(_ context.Context, p Priority, limit int) ([]*Entry, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("lane: unknown priority %q", p)
	}
	meta, err := s.readMeta(p)
	if err != nil {
		return nil, err
	}
	if meta.expired(s.nowMs()) {
		return nil, nil
	}
	lo, hi := keyRange(EntryPrefix(s.ns, p))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Entry
	for ok := iter.First(); ok; ok = iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if e, okDec := decodeEntry(iter.Value()); okDec {
			out = append(out, e)
		}
	}
	return out, nil
}

// Remove deletes a specific entry from lane p.
func (s *PebbleStore) Remove(ctx context.Context, p Priority, entryID string) (*Entry, error) {
	unlock, err := s.lock(p)
	if err != nil {
		return nil, err
	}
	defer unlock()

	meta, err := s.readMeta(p)
	if err != nil {
		return nil, err
	}
	if meta.expired(s.nowMs()) {
		return nil, ErrNotFound
	}
	seqBytes, err := s.db.Get(IndexKey(s.ns, p, entryID))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	seq, ok := id.FromBytes(seqBytes)
	if !ok {
		return nil, fmt.Errorf("lane: corrupt index for entry %s", entryID)
	}
	key := EntryKey(s.ns, p, seq)
	val, err := s.db.Get(key)
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e, okDec := decodeEntry(val)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return nil, err
	}
	if err := b.Delete(IndexKey(s.ns, p, entryID), nil); err != nil {
		return nil, err
	}
	if meta.count > 0 {
		meta.count--
	}
	if err := b.Set(MetaKey(s.ns, p), meta.encode(), nil); err != nil {
		return nil, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	if !okDec {
		return nil, fmt.Errorf("lane: corrupt record for entry %s", entryID)
	}
	return e, nil
}

// MarkDone records entryID as completed until the store TTL elapses.
func (s *PebbleStore) MarkDone(ctx context.Context, entryID string) error {
	var expires int64
	if s.ttl > 0 {
		expires = s.nowMs() + s.ttl.Milliseconds()
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(DoneKey(s.ns, entryID), laneMeta{expiresMs: expires}.encode(), nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// IsDone reports whether entryID carries an unexpired done marker.
func (s *PebbleStore) IsDone(_ context.Context, entryID string) (bool, error) {
	b, err := s.db.Get(DoneKey(s.ns, entryID))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return !decodeMeta(b).expired(s.nowMs()), nil
}

func (s *PebbleStore) purgeLane(ctx context.Context, p Priority) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := s.dropLane(b, p); err != nil {
		return err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return err
	}
	s.logger.Info("lane expired", log.Str("lane", p.String()))
	return nil
}

// PurgeExpired drops expired lanes and done markers. It returns the number of
// lanes and markers removed.
func (s *PebbleStore) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	for _, p := range All {
		unlock, _ := s.lock(p)
		meta, err := s.readMeta(p)
		if err == nil && meta.expired(s.nowMs()) {
			err = s.purgeLane(ctx, p)
			if err == nil {
				purged++
			}
		}
		unlock()
		if err != nil {
			return purged, err
		}
	}

	s.doneMu.Lock()
	defer s.doneMu.Unlock()
	lo, hi := keyRange(DonePrefix(s.ns))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return purged, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()
	markers := 0
	nowMs := s.nowMs()
	for ok := iter.First(); ok; ok = iter.Next() {
		if decodeMeta(iter.Value()).expired(nowMs) {
			if err := b.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
				return purged, err
			}
			markers++
		}
	}
	if markers > 0 {
		if err := s.db.CommitBatch(ctx, b); err != nil {
			return purged, err
		}
	}
	return purged + markers, nil
}
