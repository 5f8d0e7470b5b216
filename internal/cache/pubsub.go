package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/constants"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PubSubManager fans committed pool events out over Redis Pub/Sub.
type PubSubManager struct {
	client redis.UniversalClient
	log    *logrus.Logger
}

func NewPubSubManager(client redis.UniversalClient, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, log: logger}
}

// Publish sends the event to the global, per-pool and per-kind channels.
func (p *PubSubManager) Publish(ctx context.Context, ev *models.PoolEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	channels := []string{
		constants.PubSubChannelEvents,
		constants.PubSubChannelPoolPrefix + ev.Pool,
		constants.PubSubChannelKindPrefix + string(ev.Kind),
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe delivers events from channel until ctx is cancelled.
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler func(*models.PoolEvent)) error {
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	p.log.WithField("channel", channel).Info("subscribed")
	return p.consume(ctx, pubsub, handler)
}

// PSubscribe subscribes to a pattern (e.g., "pools:events:pool:*")
func (p *PubSubManager) PSubscribe(ctx context.Context, pattern string, handler func(*models.PoolEvent)) error {
	pubsub := p.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	p.log.WithField("pattern", pattern).Info("subscribed")
	return p.consume(ctx, pubsub, handler)
}

func (p *PubSubManager) consume(ctx context.Context, pubsub *redis.PubSub, handler func(*models.PoolEvent)) error {
	// Wait for the subscription to be confirmed before reading
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.PoolEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.log.WithError(err).WithField("channel", msg.Channel).Warn("failed to unmarshal pool event")
				continue
			}
			handler(&ev)
		}
	}
}
