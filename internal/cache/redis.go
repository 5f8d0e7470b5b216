package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/constants"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient connects and pings. Zero timeouts take the package defaults.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = constants.RedisDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = constants.RedisReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = constants.RedisWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// RedisStateStore persists pool state in Redis. Each commit is one
// MULTI/EXEC transaction covering the state hash, the changed positions
// and the recent-events list, guarded by WATCH on the state hash so
// replicas sharing the database cannot overwrite each other.
type RedisStateStore struct {
	client redis.UniversalClient
}

func NewRedisStateStore(client redis.UniversalClient) (*RedisStateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStateStore{client: client}, nil
}

func (s *RedisStateStore) Load(ctx context.Context, pool string) (amm.PoolRecord, bool, error) {
	fields, err := s.client.HGetAll(ctx, stateKey(pool)).Result()
	if err != nil {
		return amm.PoolRecord{}, false, fmt.Errorf("get pool state: %w", err)
	}
	if len(fields) == 0 {
		return amm.PoolRecord{}, false, nil
	}

	var rec amm.PoolRecord
	rec.VaultA = fields["vault_a"] == "1"
	rec.VaultB = fields["vault_b"] == "1"
	if rec.Reserves.ReserveA, err = fixedpoint.ParseAmount(fields["reserve_a"]); err != nil {
		return amm.PoolRecord{}, false, fmt.Errorf("decode reserve_a: %w", err)
	}
	if rec.Reserves.ReserveB, err = fixedpoint.ParseAmount(fields["reserve_b"]); err != nil {
		return amm.PoolRecord{}, false, fmt.Errorf("decode reserve_b: %w", err)
	}
	if v := fields["sequence"]; v != "" {
		if rec.Sequence, err = strconv.ParseUint(v, 10, 64); err != nil {
			return amm.PoolRecord{}, false, fmt.Errorf("decode sequence: %w", err)
		}
	}

	raw, err := s.client.HGetAll(ctx, positionsKey(pool)).Result()
	if err != nil {
		return amm.PoolRecord{}, false, fmt.Errorf("get positions: %w", err)
	}
	rec.Positions = make([]amm.Position, 0, len(raw))
	for depositor, val := range raw {
		var p amm.Position
		if err := json.Unmarshal([]byte(val), &p); err != nil {
			return amm.PoolRecord{}, false, fmt.Errorf("unmarshal position %s: %w", depositor, err)
		}
		rec.Positions = append(rec.Positions, p)
	}

	return rec, true, nil
}

func (s *RedisStateStore) Commit(ctx context.Context, pool string, c amm.Commit) error {
	state := map[string]interface{}{
		"vault_a":     boolFlag(c.VaultA),
		"vault_b":     boolFlag(c.VaultB),
		"reserve_a":   c.Reserves.ReserveA.String(),
		"reserve_b":   c.Reserves.ReserveB.String(),
		"total_stake": c.TotalStake.String(),
	}
	if c.Event != nil {
		state["sequence"] = strconv.FormatUint(c.Event.Sequence, 10)
	}

	positions := make(map[string]interface{}, len(c.Positions))
	for _, p := range c.Positions {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
		positions[p.Depositor.String()] = b
	}

	var event []byte
	if c.Event != nil {
		b, err := json.Marshal(c.Event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		event = b
	}

	key := stateKey(pool)
	expected := c.ExpectedSequence()
	txf := func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, "sequence").Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read pool sequence: %w", err)
		}
		if stored != expected {
			return fmt.Errorf("stored sequence %d, expected %d: %w", stored, expected, amm.ErrStateConflict)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, state)
			if len(positions) > 0 {
				pipe.HSet(ctx, positionsKey(pool), positions)
			}
			if event != nil {
				pipe.LPush(ctx, eventsKey(pool), event)
				pipe.LTrim(ctx, eventsKey(pool), 0, constants.MaxRecentEvents-1)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("commit pool state: %w", amm.ErrStateConflict)
	case errors.Is(err, amm.ErrStateConflict):
		return err
	default:
		return fmt.Errorf("commit pool state: %w", err)
	}
}

// RecentEvents returns up to limit committed events, newest first.
func (s *RedisStateStore) RecentEvents(ctx context.Context, pool string, limit int64) ([]*models.PoolEvent, error) {
	if limit <= 0 || limit > constants.MaxRecentEvents {
		limit = constants.MaxRecentEvents
	}
	vals, err := s.client.LRange(ctx, eventsKey(pool), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}

	out := make([]*models.PoolEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.PoolEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

func (s *RedisStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func stateKey(pool string) string {
	return constants.RedisKeyPoolPrefix + pool + constants.RedisKeyStateSuffix
}

func positionsKey(pool string) string {
	return constants.RedisKeyPoolPrefix + pool + constants.RedisKeyPositionsSuff
}

func eventsKey(pool string) string {
	return constants.RedisKeyPoolPrefix + pool + constants.RedisKeyEventsSuffix
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
