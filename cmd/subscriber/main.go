// cmd/subscriber prints live pool events from Redis pub/sub.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/cache"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/config"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/constants"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var pool, kind string

	cmd := &cobra.Command{
		Use:          "subscriber",
		Short:        "Print live pool events",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			channel, pattern, err := channelFor(pool, kind)
			if err != nil {
				return err
			}
			return run(cmd.Context(), channel, pattern)
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "", "only print events for this pool")
	cmd.Flags().StringVar(&kind, "kind", "", "only print events of this kind (e.g. swap)")
	cmd.MarkFlagsMutuallyExclusive("pool", "kind")
	return cmd
}

// channelFor picks the pub/sub channel for the filters. pattern is true
// when the result must be used with PSUBSCRIBE.
func channelFor(pool, kind string) (channel string, pattern bool, err error) {
	switch {
	case pool != "" && kind != "":
		return "", false, fmt.Errorf("--pool and --kind cannot be combined")
	case pool != "":
		return constants.PubSubChannelPoolPrefix + pool, false, nil
	case kind != "":
		if !models.EventKind(kind).Valid() {
			return "", false, fmt.Errorf("unknown event kind %q", kind)
		}
		return constants.PubSubChannelKindPrefix + kind, false, nil
	default:
		return constants.PubSubPatternPoolChannel, true, nil
	}
}

func run(ctx context.Context, channel string, pattern bool) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	defer func() { _ = client.Close() }()

	var sub storage.EventSubscriber = cache.NewPubSubManager(client, logger)
	show := func(ev *models.PoolEvent) { eventEntry(logger, ev).Info(ev.ID) }

	logger.WithField("channel", channel).Info("subscribed")
	if pattern {
		err = sub.PSubscribe(ctx, channel, show)
	} else {
		err = sub.Subscribe(ctx, channel, show)
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("subscription failed: %w", err)
	}
	logger.Info("subscriber stopped")
	return nil
}

func eventEntry(logger *logrus.Logger, ev *models.PoolEvent) *logrus.Entry {
	entry := logger.WithFields(logrus.Fields{
		"pool":      ev.Pool,
		"seq":       ev.Sequence,
		"kind":      ev.Kind,
		"reserve_a": ev.ReserveA.String(),
		"reserve_b": ev.ReserveB.String(),
	})
	switch ev.Kind {
	case models.EventSwap:
		entry = entry.WithFields(logrus.Fields{
			"token":      ev.Token,
			"amount_in":  ev.AmountIn.String(),
			"amount_out": ev.AmountOut.String(),
			"fee":        ev.Fee.String(),
		})
	case models.EventLiquidityAdded, models.EventLiquidityRemoved:
		entry = entry.WithFields(logrus.Fields{
			"depositor": ev.Depositor,
			"stake":     ev.Stake.String(),
			"amount_a":  ev.AmountA.String(),
			"amount_b":  ev.AmountB.String(),
		})
	}
	return entry
}
