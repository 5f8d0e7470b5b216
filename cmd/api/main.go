package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/cache"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/config"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/flags"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/registry"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/server"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main wires config, pool registry, optional Redis and ClickHouse backends,
// and serves the HTTP API until SIGINT/SIGTERM.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := registry.Options{
		Logger:                  logger,
		DefaultWithdrawCooldown: cfg.DefaultWithdrawCooldown,
	}
	var (
		feed   storage.EventFeed
		sinks  cache.FanoutSink
		pauses flags.Store = flags.NewMemoryStore()
	)

	// Redis holds durable pool state and carries the live event feed
	if cfg.RedisAddr != "" {
		rclient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer func() { _ = rclient.Close() }()

		stateStore, err := cache.NewRedisStateStore(rclient)
		if err != nil {
			logger.WithError(err).Fatal("failed to create state store")
		}
		opts.Store = stateStore
		feed = stateStore
		if pauses, err = flags.NewRedisStore(rclient); err != nil {
			logger.WithError(err).Fatal("failed to create pause store")
		}
		sinks = append(sinks, cache.NewPubSubManager(rclient, logger))
		logger.WithField("addr", cfg.RedisAddr).Info("redis state store enabled")
	} else {
		logger.Warn("REDIS_ADDR not set, pool state is kept in memory only")
	}

	// ClickHouse keeps the full event history
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer func() { _ = ch.Close() }()
		if err := ch.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("failed to create ClickHouse schema")
		}
		sinks = append(sinks, ch)
	}

	if len(sinks) > 0 {
		opts.Sink = sinks
	}

	reg, err := registry.Load(cfg.PoolConfigPath, opts)
	if err != nil {
		logger.WithError(err).Fatal("failed to load pool registry")
	}
	loadCtx, cancelLoad := context.WithTimeout(ctx, 30*time.Second)
	err = reg.LoadState(loadCtx)
	cancelLoad()
	if err != nil {
		logger.WithError(err).Fatal("failed to restore pool state")
	}
	for _, p := range reg.GetAllPools() {
		info := p.Controller.Info()
		logger.WithFields(logrus.Fields{
			"pool":      info.Name,
			"state":     info.State,
			"reserve_a": info.Reserves.ReserveA.String(),
			"reserve_b": info.Reserves.ReserveB.String(),
			"fee_bps":   amm.FeeBps(info.Fee),
		}).Info("pool ready")
	}

	maxImpact := cfg.MaxPriceImpactBps
	if maxImpact > amm.BpsDenominator {
		maxImpact = amm.BpsDenominator
	}
	h := &server.Handlers{
		Registry:          reg,
		Feed:              feed,
		Pauses:            pauses,
		DevMode:           cfg.DevMode,
		Logger:            logger,
		MaxPriceImpactBps: uint16(maxImpact),
		RequestTimeout:    cfg.RequestTimeout,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:          cfg.APIAddr,
			DevMode:       cfg.DevMode,
			APIKey:        cfg.APIKey,
			SwapRateLimit: cfg.SwapRateLimit,
			SwapRateBurst: cfg.SwapRateBurst,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{"addr": cfg.APIAddr, "pools": reg.PoolCount()}).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelWait()
	if err := srv.WaitClosed(waitCtx); err != nil {
		logger.WithError(err).Warn("shutdown did not complete")
	}
}
