package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
)

// EventFeed serves recently committed pool events
type EventFeed interface {
	// RecentEvents returns up to limit events for a pool, newest first
	RecentEvents(ctx context.Context, pool string, limit int64) ([]*models.PoolEvent, error)

	// Ping checks if the backend is reachable
	Ping(ctx context.Context) error
}

// EventStore defines the interface for persistent event history
type EventStore interface {
	// InsertEvent inserts a pool event into the store
	InsertEvent(ctx context.Context, ev *models.PoolEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// EventSubscriber delivers live pool events until ctx is cancelled
type EventSubscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(*models.PoolEvent)) error
	PSubscribe(ctx context.Context, pattern string, handler func(*models.PoolEvent)) error
}
