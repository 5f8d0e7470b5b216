package cache

import (
	"context"
	"errors"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/storage"
)

var (
	_ amm.StateStore          = (*RedisStateStore)(nil)
	_ amm.EventSink           = (*PubSubManager)(nil)
	_ amm.EventSink           = (*ClickHouseStore)(nil)
	_ amm.EventSink           = FanoutSink(nil)
	_ storage.EventFeed       = (*RedisStateStore)(nil)
	_ storage.EventStore      = (*ClickHouseStore)(nil)
	_ storage.EventSubscriber = (*PubSubManager)(nil)
)

// FanoutSink publishes to every sink and joins their errors.
type FanoutSink []amm.EventSink

func (f FanoutSink) Publish(ctx context.Context, ev *models.PoolEvent) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
