package lane

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzbill/txq/pkg/log"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Prefix namespaces every key; defaults to "txq".
	Prefix    string
	Namespace string
	TTL       time.Duration
	Logger    log.Logger
}

// RedisStore keeps one Redis list per lane. LPOP gives atomic ownership
// transfer across processes and EXPIRE bounds retention.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger log.Logger
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = "txq"
	}
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	return &RedisStore{
		client: client,
		prefix: opts.Prefix + ":" + opts.Namespace,
		ttl:    opts.TTL,
		logger: opts.Logger.With(log.Component("lane.redis"), log.Str("namespace", opts.Namespace)),
	}
}

func (s *RedisStore) laneKey(p Priority) string { return s.prefix + ":lane:" + string(p) }
func (s *RedisStore) doneKey(id string) string  { return s.prefix + ":done:" + id }

// Push appends e with RPUSH and refreshes the list TTL in the same transaction.
func (s *RedisStore) Push(ctx context.Context, e *Entry) error {
	if !e.Priority.Valid() {
		return fmt.Errorf("lane: unknown priority %q", e.Priority)
	}
	b, err := Marshal(e)
	if err != nil {
		return err
	}
	key := s.laneKey(e.Priority)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lane: push %s: %w", e.Priority, err)
	}
	return nil
}

// PushFront puts e back at the head of its lane with LPUSH.
func (s *RedisStore) PushFront(ctx context.Context, e *Entry) error {
	if !e.Priority.Valid() {
		return fmt.Errorf("lane: unknown priority %q", e.Priority)
	}
	b, err := Marshal(e)
	if err != nil {
		return err
	}
	key := s.laneKey(e.Priority)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lane: push front %s: %w", e.Priority, err)
	}
	return nil
}

// Pop removes the head of lane p with LPOP.
func (s *RedisStore) Pop(ctx context.Context, p Priority) (*Entry, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("lane: unknown priority %q", p)
	}
	for {
		raw, err := s.client.LPop(ctx, s.laneKey(p)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrEmpty
			}
			return nil, fmt.Errorf("lane: pop %s: %w", p, err)
		}
		e, err := Unmarshal(raw)
		if err != nil {
			s.logger.Warn("dropped corrupt lane record", log.Str("lane", p.String()), log.Err(err))
			continue
		}
		return e, nil
	}
}

// Len returns LLEN of lane p.
func (s *RedisStore) Len(ctx context.Context, p Priority) (int, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("lane: unknown priority %q", p)
	}
	n, err := s.client.LLen(ctx, s.laneKey(p)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Peek returns up to limit entries from the head of lane p.
func (s *RedisStore) Peek(ctx context.Context, p Priority, limit int) ([]*Entry, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("lane: unknown priority %q", p)
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	vals, err := s.client.LRange(ctx, s.laneKey(p), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(vals))
	for _, v := range vals {
		if e, err := Unmarshal([]byte(v)); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// Remove deletes entryID from lane p with LREM on its exact encoding.
func (s *RedisStore) Remove(ctx context.Context, p Priority, entryID string) (*Entry, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("lane: unknown priority %q", p)
	}
	key := s.laneKey(p)
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		e, err := Unmarshal([]byte(v))
		if err != nil || e.ID != entryID {
			continue
		}
		n, err := s.client.LRem(ctx, key, 1, v).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// popped by someone else between LRANGE and LREM
			return nil, ErrNotFound
		}
		return e, nil
	}
	return nil, ErrNotFound
}

// MarkDone sets a done marker that expires with the store TTL.
func (s *RedisStore) MarkDone(ctx context.Context, entryID string) error {
	return s.client.Set(ctx, s.doneKey(entryID), "1", s.ttl).Err()
}

// IsDone reports whether a done marker exists for entryID.
func (s *RedisStore) IsDone(ctx context.Context, entryID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.doneKey(entryID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
