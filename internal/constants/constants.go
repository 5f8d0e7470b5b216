package constants

import "time"

// Redis keys
const (
	RedisKeyPoolPrefix    = "pool:"
	RedisKeyStateSuffix   = ":state"
	RedisKeyPositionsSuff = ":positions"
	RedisKeyEventsSuffix  = ":events"
)

// Redis Pub/Sub channels
const (
	PubSubChannelEvents      = "pools:events"
	PubSubChannelPoolPrefix  = "pools:events:pool:"
	PubSubChannelKindPrefix  = "pools:events:kind:"
	PubSubPatternPoolChannel = "pools:events:pool:*"
)

// Limits
const (
	MaxRecentEvents = 100
)

// Redis client timeouts
const (
	RedisDialTimeout  = 5 * time.Second
	RedisReadTimeout  = 3 * time.Second
	RedisWriteTimeout = 3 * time.Second
)

// ClickHouse
const (
	ClickHouseEventsTable = "pool_events"
)
