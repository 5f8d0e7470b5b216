package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	indexKey    = "flags:pause:index"
	valuePrefix = "flags:pause:"
)

var poolRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

func ValidatePool(pool string) error {
	if !poolRe.MatchString(pool) {
		return fmt.Errorf("%w: %q", ErrInvalidPool, pool)
	}
	return nil
}

// RedisStore keeps pauses in Redis so every API replica sees them.
// Lifting a pause deletes its key.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

func (s *RedisStore) Set(ctx context.Context, p Pause) (Pause, error) {
	if err := ValidatePool(p.Pool); err != nil {
		return Pause{}, err
	}
	p.UpdatedAt = s.now().UTC()

	pipe := s.client.TxPipeline()
	if p.active() {
		b, err := json.Marshal(p)
		if err != nil {
			return Pause{}, fmt.Errorf("marshal pause: %w", err)
		}
		pipe.Set(ctx, pauseKey(p.Pool), b, 0)
		pipe.SAdd(ctx, indexKey, p.Pool)
	} else {
		pipe.Del(ctx, pauseKey(p.Pool))
		pipe.SRem(ctx, indexKey, p.Pool)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Pause{}, fmt.Errorf("set pause: %w", err)
	}
	return p, nil
}

func (s *RedisStore) Get(ctx context.Context, pool string) (Pause, error) {
	if err := ValidatePool(pool); err != nil {
		return Pause{}, err
	}

	val, err := s.client.Get(ctx, pauseKey(pool)).Result()
	if err == redis.Nil {
		return Pause{Pool: pool}, nil
	}
	if err != nil {
		return Pause{}, fmt.Errorf("get pause: %w", err)
	}

	var p Pause
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return Pause{}, fmt.Errorf("unmarshal pause: %w", err)
	}
	return p, nil
}

// List returns the active pauses sorted by pool.
func (s *RedisStore) List(ctx context.Context) ([]Pause, error) {
	pools, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pause index: %w", err)
	}

	keys := make([]string, 0, len(pools))
	for _, pool := range pools {
		if ValidatePool(pool) == nil {
			keys = append(keys, pauseKey(pool))
		}
	}
	if len(keys) == 0 {
		return []Pause{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget pauses: %w", err)
	}

	out := make([]Pause, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p Pause
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pool < out[j].Pool })
	return out, nil
}

func pauseKey(pool string) string {
	return valuePrefix + pool
}

// MemoryStore is the single-process Store used when Redis is not configured.
type MemoryStore struct {
	mu     sync.RWMutex
	pauses map[string]Pause
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pauses: make(map[string]Pause), now: time.Now}
}

func (m *MemoryStore) Set(_ context.Context, p Pause) (Pause, error) {
	if err := ValidatePool(p.Pool); err != nil {
		return Pause{}, err
	}
	p.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if p.active() {
		m.pauses[p.Pool] = p
	} else {
		delete(m.pauses, p.Pool)
	}
	return p, nil
}

func (m *MemoryStore) Get(_ context.Context, pool string) (Pause, error) {
	if err := ValidatePool(pool); err != nil {
		return Pause{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.pauses[pool]; ok {
		return p, nil
	}
	return Pause{Pool: pool}, nil
}

func (m *MemoryStore) List(context.Context) ([]Pause, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Pause, 0, len(m.pauses))
	for _, p := range m.pauses {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pool < out[j].Pool })
	return out, nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
