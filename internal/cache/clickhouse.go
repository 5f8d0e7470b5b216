package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/constants"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/sirupsen/logrus"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore keeps the full history of committed pool events.
type ClickHouseStore struct {
	conn driver.Conn
	log  *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, log: logger}, nil
}

// EnsureSchema creates the events table if it does not exist.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + constants.ClickHouseEventsTable + ` (
			id          String,
			sequence    UInt64,
			timestamp   DateTime64(3),
			pool        LowCardinality(String),
			kind        LowCardinality(String),
			depositor   String,
			token       String,
			amount_in   UInt128,
			amount_out  UInt128,
			fee         UInt128,
			stake       UInt128,
			amount_a    UInt128,
			amount_b    UInt128,
			reserve_a   UInt128,
			reserve_b   UInt128,
			total_stake UInt128
		) ENGINE = MergeTree
		ORDER BY (pool, sequence)
	`
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

// InsertEvent stores one event. UInt128 columns are bound as *big.Int.
func (c *ClickHouseStore) InsertEvent(ctx context.Context, ev *models.PoolEvent) error {
	query := `
		INSERT INTO ` + constants.ClickHouseEventsTable + ` (
			id, sequence, timestamp, pool, kind, depositor, token,
			amount_in, amount_out, fee, stake, amount_a, amount_b,
			reserve_a, reserve_b, total_stake
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		ev.ID,
		ev.Sequence,
		ev.Timestamp,
		ev.Pool,
		string(ev.Kind),
		ev.Depositor,
		ev.Token,
		ev.AmountIn.Big(),
		ev.AmountOut.Big(),
		ev.Fee.Big(),
		ev.Stake.Big(),
		ev.AmountA.Big(),
		ev.AmountB.Big(),
		ev.ReserveA.Big(),
		ev.ReserveB.Big(),
		ev.TotalStake.Big(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Publish lets the store act as an event sink.
func (c *ClickHouseStore) Publish(ctx context.Context, ev *models.PoolEvent) error {
	return c.InsertEvent(ctx, ev)
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
