package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

var ErrPoolNotFound = errors.New("pool not found")

// PoolConfig represents a pool entry in the JSON config
type PoolConfig struct {
	Name             string `json:"name"`
	TokenMintA       string `json:"token_mint_a"`
	TokenMintB       string `json:"token_mint_b"`
	FeeNumerator     uint32 `json:"fee_numerator"`
	FeeDenominator   uint32 `json:"fee_denominator"`
	WithdrawCooldown string `json:"withdraw_cooldown,omitempty"` // e.g. "100s"
}

// Pool is a parsed pool definition with its running controller.
type Pool struct {
	Name             string
	TokenMintA       solana.PublicKey
	TokenMintB       solana.PublicKey
	Fee              amm.FeeConfig
	WithdrawCooldown time.Duration
	Controller       *amm.Controller
}

// TokenForMint maps a mint to its side of the pool.
func (p *Pool) TokenForMint(mint solana.PublicKey) (amm.Token, error) {
	switch {
	case p.TokenMintA.Equals(mint):
		return amm.TokenA, nil
	case p.TokenMintB.Equals(mint):
		return amm.TokenB, nil
	}
	return 0, fmt.Errorf("mint %s is not part of pool %s: %w", mint, p.Name, amm.ErrInvalidToken)
}

// ParseToken accepts a side name ("A", "B") or one of the pool's mints.
func (p *Pool) ParseToken(s string) (amm.Token, error) {
	t, err := amm.ParseToken(s)
	if err == nil {
		return t, nil
	}
	mint, perr := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if perr != nil {
		return 0, err
	}
	return p.TokenForMint(mint)
}

// Options are shared by every controller the registry builds.
type Options struct {
	Store  amm.StateStore
	Sink   amm.EventSink
	Logger *logrus.Logger
	// DefaultWithdrawCooldown applies to pools that do not set one.
	DefaultWithdrawCooldown time.Duration
}

// Registry holds all configured pools
type Registry struct {
	pools  []*Pool
	byName map[string]*Pool
}

// Load reads pool definitions from a JSON file and builds a controller for each
func Load(path string, opts Options) (*Registry, error) {
	configs, err := LoadPoolConfigs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}
	return New(configs, opts)
}

// LoadPoolConfigs reads and decodes the pool config file
func LoadPoolConfigs(path string) ([]PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configs []PoolConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return configs, nil
}

func New(configs []PoolConfig, opts Options) (*Registry, error) {
	r := &Registry{
		pools:  make([]*Pool, 0, len(configs)),
		byName: make(map[string]*Pool, len(configs)),
	}

	for i, cfg := range configs {
		pool, err := parsePoolConfig(cfg, opts.DefaultWithdrawCooldown)
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}
		if _, dup := r.byName[pool.Name]; dup {
			return nil, fmt.Errorf("pool %d: duplicate name %q", i, pool.Name)
		}

		ctrl, err := amm.NewController(amm.Config{
			Name:             pool.Name,
			Fee:              pool.Fee,
			WithdrawCooldown: pool.WithdrawCooldown,
			Store:            opts.Store,
			Sink:             opts.Sink,
			Logger:           opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}
		pool.Controller = ctrl

		r.pools = append(r.pools, pool)
		r.byName[pool.Name] = pool
	}

	return r, nil
}

// parsePoolConfig converts a config entry to a Pool with validation
func parsePoolConfig(cfg PoolConfig, defaultCooldown time.Duration) (*Pool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	fee := amm.FeeConfig{Numerator: cfg.FeeNumerator, Denominator: cfg.FeeDenominator}
	if err := fee.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", amm.ErrInvalidFee, err)
	}

	mintA, err := solana.PublicKeyFromBase58(cfg.TokenMintA)
	if err != nil {
		return nil, fmt.Errorf("token_mint_a: %w", err)
	}
	mintB, err := solana.PublicKeyFromBase58(cfg.TokenMintB)
	if err != nil {
		return nil, fmt.Errorf("token_mint_b: %w", err)
	}
	if mintA.Equals(mintB) {
		return nil, fmt.Errorf("token_mint_a and token_mint_b must differ")
	}

	cooldown := defaultCooldown
	if cfg.WithdrawCooldown != "" {
		cooldown, err = time.ParseDuration(cfg.WithdrawCooldown)
		if err != nil {
			return nil, fmt.Errorf("withdraw_cooldown: %w", err)
		}
		if cooldown < 0 {
			return nil, fmt.Errorf("withdraw_cooldown must not be negative")
		}
	}

	return &Pool{
		Name:             cfg.Name,
		TokenMintA:       mintA,
		TokenMintB:       mintB,
		Fee:              fee,
		WithdrawCooldown: cooldown,
	}, nil
}

// LoadState restores every pool from the state store.
func (r *Registry) LoadState(ctx context.Context) error {
	for _, p := range r.pools {
		if err := p.Controller.Load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FindPoolByName searches for a pool by its name
func (r *Registry) FindPoolByName(name string) (*Pool, error) {
	if p, ok := r.byName[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, name)
}

// FindPoolByMints searches for a pool matching the given token pair
func (r *Registry) FindPoolByMints(mintA, mintB solana.PublicKey) (*Pool, error) {
	for _, pool := range r.pools {
		// Check both directions: A->B and B->A
		if (pool.TokenMintA.Equals(mintA) && pool.TokenMintB.Equals(mintB)) ||
			(pool.TokenMintA.Equals(mintB) && pool.TokenMintB.Equals(mintA)) {
			return pool, nil
		}
	}
	return nil, fmt.Errorf("%w: no pool for mints %s / %s", ErrPoolNotFound, mintA, mintB)
}

// GetAllPools returns all registered pools in config order
func (r *Registry) GetAllPools() []*Pool {
	return r.pools
}

func (r *Registry) PoolCount() int {
	return len(r.pools)
}
