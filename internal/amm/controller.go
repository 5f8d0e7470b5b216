package amm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters and collaborators of one pool.
type Config struct {
	Name string
	Fee  FeeConfig

	// WithdrawCooldown rejects removals within this window of the
	// position's last deposit. Zero disables the check.
	WithdrawCooldown time.Duration

	// Store is optional; without it state lives only in memory.
	Store StateStore
	// Sink is optional.
	Sink EventSink

	Logger *logrus.Logger
	Now    func() time.Time
}

// Controller runs the public operations of a single pool. Mutations hold
// the write lock from snapshot through durable commit; quotes share the
// read lock.
type Controller struct {
	mu sync.RWMutex

	name     string
	engine   *SwapEngine
	vaults   *ReserveVaults
	ledger   *LiquidityLedger
	cooldown time.Duration
	seq      uint64

	store StateStore
	sink  EventSink
	log   *logrus.Entry
	now   func() time.Time
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("pool name is required")
	}
	engine, err := NewSwapEngine(cfg.Fee)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", cfg.Name, err)
	}
	if cfg.WithdrawCooldown < 0 {
		return nil, fmt.Errorf("pool %s: negative withdraw cooldown", cfg.Name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Controller{
		name:     cfg.Name,
		engine:   engine,
		vaults:   NewReserveVaults(),
		ledger:   NewLiquidityLedger(),
		cooldown: cfg.WithdrawCooldown,
		store:    cfg.Store,
		sink:     cfg.Sink,
		log:      logger.WithField("pool", cfg.Name),
		now:      now,
	}, nil
}

func (c *Controller) Name() string { return c.name }

func (c *Controller) Fee() FeeConfig { return c.engine.Fee() }

// Load replaces in-memory state with the last committed state from the
// store. A pool the store has never seen is left empty.
func (c *Controller) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Controller) loadLocked(ctx context.Context) error {
	rec, found, err := c.store.Load(ctx, c.name)
	if err != nil {
		return fmt.Errorf("load pool %s: %w", c.name, err)
	}
	if !found {
		return nil
	}
	if err := c.ledger.restore(rec.Positions); err != nil {
		return fmt.Errorf("load pool %s: %w", c.name, err)
	}
	c.vaults.restore(rec.VaultA, rec.VaultB, rec.Reserves)
	c.seq = rec.Sequence

	c.log.WithFields(logrus.Fields{
		"reserve_a": rec.Reserves.ReserveA.String(),
		"reserve_b": rec.Reserves.ReserveB.String(),
		"positions": len(rec.Positions),
		"sequence":  rec.Sequence,
	}).Info("pool state loaded")
	return nil
}

// InitializeVault creates the vault for token t.
func (c *Controller) InitializeVault(ctx context.Context, t Token) error {
	return c.mutate(ctx, func() (*models.PoolEvent, error) {
		if !t.Valid() {
			return nil, fmt.Errorf("initialize vault: %w", ErrInvalidToken)
		}
		if c.vaults.Initialized(t) {
			return nil, fmt.Errorf("vault %s: %w", t, ErrAlreadyInitialized)
		}

		ev := c.newEvent(models.EventVaultInitialized)
		ev.Token = t.String()
		cm := c.baseCommit(ev)
		if t == TokenA {
			cm.VaultA = true
		} else {
			cm.VaultB = true
		}

		if err := c.persist(ctx, cm); err != nil {
			return nil, err
		}
		if err := c.vaults.Initialize(t); err != nil {
			return nil, err
		}
		c.seq = ev.Sequence

		c.log.WithField("token", t.String()).Info("vault initialized")
		return ev, nil
	})
}

// InitializePosition opens an empty position for d.
func (c *Controller) InitializePosition(ctx context.Context, d Depositor) (Position, error) {
	var pos Position
	err := c.mutate(ctx, func() (*models.PoolEvent, error) {
		ch, err := c.ledger.planInitialize(d, c.now())
		if err != nil {
			return nil, err
		}

		ev := c.newEvent(models.EventPositionInitialized)
		ev.Depositor = d.String()
		cm := c.baseCommit(ev)
		cm.Positions = []Position{ch.position}

		if err := c.persist(ctx, cm); err != nil {
			return nil, err
		}
		c.ledger.apply(ch)
		c.seq = ev.Sequence
		pos = ch.position

		c.log.WithField("depositor", d.String()).Info("position initialized")
		return ev, nil
	})
	return pos, err
}

// AddLiquidity deposits stake units for d, opening the position if needed,
// and credits both vaults proportionally.
func (c *Controller) AddLiquidity(ctx context.Context, d Depositor, stake Amount) (LiquidityResult, error) {
	var res LiquidityResult
	err := c.mutate(ctx, func() (*models.PoolEvent, error) {
		if stake.IsZero() {
			return nil, fmt.Errorf("add liquidity: %w", ErrInvalidAmount)
		}
		if !c.vaults.Ready() {
			return nil, fmt.Errorf("add liquidity: vaults not initialized: %w", ErrPoolNotActive)
		}

		reserves := c.vaults.Snapshot()
		amountA, amountB, err := depositAmounts(reserves, c.ledger.TotalStake(), stake)
		if err != nil {
			return nil, fmt.Errorf("add liquidity: %w", err)
		}
		next, err := c.vaults.Preview(Credit(TokenA, amountA), Credit(TokenB, amountB))
		if err != nil {
			return nil, fmt.Errorf("add liquidity: %w", err)
		}
		ch, err := c.ledger.planDeposit(d, stake, c.now(), true)
		if err != nil {
			return nil, fmt.Errorf("add liquidity: %w", err)
		}

		ev := c.newEvent(models.EventLiquidityAdded)
		ev.Depositor = d.String()
		ev.Stake, ev.AmountA, ev.AmountB = stake, amountA, amountB
		ev.ReserveA, ev.ReserveB, ev.TotalStake = next.ReserveA, next.ReserveB, ch.totalStake
		cm := Commit{
			VaultA:     true,
			VaultB:     true,
			Reserves:   next,
			TotalStake: ch.totalStake,
			Positions:  []Position{ch.position},
			Event:      ev,
		}

		if err := c.persist(ctx, cm); err != nil {
			return nil, err
		}
		if _, err := c.vaults.Apply(Credit(TokenA, amountA), Credit(TokenB, amountB)); err != nil {
			return nil, err
		}
		c.ledger.apply(ch)
		c.seq = ev.Sequence

		res = LiquidityResult{
			Position:    ch.position,
			Stake:       stake,
			AmountA:     amountA,
			AmountB:     amountB,
			NewReserves: next,
			TotalStake:  ch.totalStake,
		}
		c.log.WithFields(logrus.Fields{
			"depositor": d.String(),
			"stake":     stake.String(),
			"amount_a":  amountA.String(),
			"amount_b":  amountB.String(),
		}).Info("liquidity added")
		return ev, nil
	})
	return res, err
}

// RemoveLiquidity withdraws stake units for d and debits both vaults
// proportionally, rounding in favor of the pool.
func (c *Controller) RemoveLiquidity(ctx context.Context, d Depositor, stake Amount) (LiquidityResult, error) {
	var res LiquidityResult
	err := c.mutate(ctx, func() (*models.PoolEvent, error) {
		if stake.IsZero() {
			return nil, fmt.Errorf("remove liquidity: %w", ErrInvalidAmount)
		}
		ch, err := c.ledger.planWithdraw(d, stake)
		if err != nil {
			return nil, fmt.Errorf("remove liquidity: %w", err)
		}
		now := c.now()
		if c.cooldown > 0 && now.Sub(ch.position.UpdatedAt) < c.cooldown {
			unlock := ch.position.UpdatedAt.Add(c.cooldown)
			return nil, fmt.Errorf("remove liquidity: locked until %s: %w", unlock.Format(time.RFC3339), ErrWithdrawLocked)
		}

		reserves := c.vaults.Snapshot()
		amountA, amountB, err := withdrawAmounts(reserves, c.ledger.TotalStake(), stake)
		if err != nil {
			return nil, fmt.Errorf("remove liquidity: %w", err)
		}
		next, err := c.vaults.Preview(Debit(TokenA, amountA), Debit(TokenB, amountB))
		if err != nil {
			return nil, fmt.Errorf("remove liquidity: %w", err)
		}

		ev := c.newEvent(models.EventLiquidityRemoved)
		cm := c.baseCommit(ev)
		ev.Depositor = d.String()
		ev.Stake, ev.AmountA, ev.AmountB = stake, amountA, amountB
		ev.ReserveA, ev.ReserveB, ev.TotalStake = next.ReserveA, next.ReserveB, ch.totalStake
		cm.Reserves = next
		cm.TotalStake = ch.totalStake
		cm.Positions = []Position{ch.position}

		if err := c.persist(ctx, cm); err != nil {
			return nil, err
		}
		if _, err := c.vaults.Apply(Debit(TokenA, amountA), Debit(TokenB, amountB)); err != nil {
			return nil, err
		}
		c.ledger.apply(ch)
		c.seq = ev.Sequence

		res = LiquidityResult{
			Position:    ch.position,
			Stake:       stake,
			AmountA:     amountA,
			AmountB:     amountB,
			NewReserves: next,
			TotalStake:  ch.totalStake,
		}
		c.log.WithFields(logrus.Fields{
			"depositor": d.String(),
			"stake":     stake.String(),
			"amount_a":  amountA.String(),
			"amount_b":  amountB.String(),
		}).Info("liquidity removed")
		return ev, nil
	})
	return res, err
}

// Swap executes req against the current reserves. Minimum output is
// checked before anything changes.
func (c *Controller) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	var res SwapResult
	err := c.mutate(ctx, func() (*models.PoolEvent, error) {
		if c.stateLocked() != StateActive {
			return nil, fmt.Errorf("swap: %w", ErrPoolNotActive)
		}
		planned, ops, err := c.engine.Plan(c.vaults.Snapshot(), req)
		if err != nil {
			return nil, fmt.Errorf("swap: %w", err)
		}
		next, err := c.vaults.Preview(ops...)
		if err != nil {
			return nil, fmt.Errorf("swap: %w", err)
		}

		ev := c.newEvent(models.EventSwap)
		cm := c.baseCommit(ev)
		ev.Token = req.InputToken.String()
		ev.AmountIn, ev.AmountOut, ev.Fee = planned.InputAmount, planned.OutputAmount, planned.FeeCharged
		ev.ReserveA, ev.ReserveB = next.ReserveA, next.ReserveB
		cm.Reserves = next

		if err := c.persist(ctx, cm); err != nil {
			return nil, err
		}
		if _, err := c.vaults.Apply(ops...); err != nil {
			return nil, err
		}
		c.seq = ev.Sequence
		res = planned

		c.log.WithFields(logrus.Fields{
			"token":      req.InputToken.String(),
			"amount_in":  planned.InputAmount.String(),
			"amount_out": planned.OutputAmount.String(),
			"fee":        planned.FeeCharged.String(),
		}).Info("swap executed")
		return ev, nil
	})
	return res, err
}

// QuoteSwap runs the swap math and minimum-output check without
// changing anything.
func (c *Controller) QuoteSwap(req SwapRequest) (SwapResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stateLocked() != StateActive {
		return SwapResult{}, fmt.Errorf("quote: %w", ErrPoolNotActive)
	}
	res, _, err := c.engine.Plan(c.vaults.Snapshot(), req)
	if err != nil {
		return SwapResult{}, fmt.Errorf("quote: %w", err)
	}
	return res, nil
}

// QuotePrice returns the spot price of A in B and of B in A.
func (c *Controller) QuotePrice() (aInB, bInA float64, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	reserves := c.vaults.Snapshot()
	if aInB, err = SpotPrice(reserves, TokenA); err != nil {
		return 0, 0, err
	}
	if bInA, err = SpotPrice(reserves, TokenB); err != nil {
		return 0, 0, err
	}
	return aInB, bInA, nil
}

// QuotePriceImpact estimates the impact of selling amount of token t.
func (c *Controller) QuotePriceImpact(t Token, amount Amount) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stateLocked() != StateActive {
		return 0, fmt.Errorf("price impact: %w", ErrPoolNotActive)
	}
	impact, err := c.engine.PriceImpact(c.vaults.Snapshot(), t, amount)
	if err != nil {
		return 0, fmt.Errorf("price impact: %w", err)
	}
	return impact, nil
}

func (c *Controller) Reserves() ReservePair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vaults.Snapshot()
}

func (c *Controller) Position(d Depositor) (Position, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pos, ok := c.ledger.Position(d)
	if !ok {
		return Position{}, fmt.Errorf("position %s: %w", d, ErrPositionNotFound)
	}
	return pos, nil
}

func (c *Controller) Positions() []Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Positions()
}

func (c *Controller) State() PoolState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Controller) Info() PoolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return PoolInfo{
		Name:       c.name,
		State:      c.stateLocked(),
		Fee:        c.engine.Fee(),
		VaultA:     c.vaults.Initialized(TokenA),
		VaultB:     c.vaults.Initialized(TokenB),
		Reserves:   c.vaults.Snapshot(),
		TotalStake: c.ledger.TotalStake(),
		Positions:  c.ledger.Len(),
	}
}

func (c *Controller) stateLocked() PoolState {
	switch {
	case !c.vaults.Ready():
		return StateUninitialized
	case c.vaults.Snapshot().Empty():
		return StateVaultsReady
	default:
		return StateActive
	}
}

// mutate runs op under the write lock and publishes its event after
// the lock is released. When the store reports that another writer
// committed first, state is reloaded so the caller's resubmission is
// priced against current reserves; op itself is not retried.
func (c *Controller) mutate(ctx context.Context, op func() (*models.PoolEvent, error)) error {
	c.mu.Lock()
	ev, err := op()
	if errors.Is(err, ErrStateConflict) {
		c.log.WithField("sequence", c.seq).Warn("pool state moved, reloading")
		if lerr := c.loadLocked(ctx); lerr != nil {
			c.log.WithError(lerr).Error("reload after conflict failed")
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.log.WithError(err).Debug("pool operation rejected")
		return err
	}
	c.publish(ctx, ev)
	return nil
}

func (c *Controller) persist(ctx context.Context, cm Commit) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Commit(ctx, c.name, cm); err != nil {
		return fmt.Errorf("persist pool %s: %w", c.name, err)
	}
	return nil
}

func (c *Controller) publish(ctx context.Context, ev *models.PoolEvent) {
	if c.sink == nil || ev == nil {
		return
	}
	if err := c.sink.Publish(ctx, ev); err != nil {
		c.log.WithError(err).WithField("event", ev.ID).Warn("failed to publish pool event")
	}
}

func (c *Controller) newEvent(kind models.EventKind) *models.PoolEvent {
	ts := c.now()
	seq := c.seq + 1
	return &models.PoolEvent{
		ID:        models.NewEventID(c.name, seq, ts),
		Sequence:  seq,
		Timestamp: ts,
		Pool:      c.name,
		Kind:      kind,
	}
}

// baseCommit captures the current state so an operation only overrides
// what it changes.
func (c *Controller) baseCommit(ev *models.PoolEvent) Commit {
	reserves := c.vaults.Snapshot()
	ev.ReserveA, ev.ReserveB, ev.TotalStake = reserves.ReserveA, reserves.ReserveB, c.ledger.TotalStake()
	return Commit{
		VaultA:     c.vaults.Initialized(TokenA),
		VaultB:     c.vaults.Initialized(TokenB),
		Reserves:   reserves,
		TotalStake: c.ledger.TotalStake(),
		Event:      ev,
	}
}

// depositAmounts maps stake units to the reserves a depositor must add.
// An empty pool takes stake units of each token one-to-one.
func depositAmounts(reserves ReservePair, totalStake, stake Amount) (Amount, Amount, error) {
	if totalStake.IsZero() {
		return stake, stake, nil
	}
	a, err := fixedpoint.MulDivCeil(stake, reserves.ReserveA, totalStake)
	if err != nil {
		return Amount{}, Amount{}, err
	}
	b, err := fixedpoint.MulDivCeil(stake, reserves.ReserveB, totalStake)
	if err != nil {
		return Amount{}, Amount{}, err
	}
	return a, b, nil
}

func withdrawAmounts(reserves ReservePair, totalStake, stake Amount) (Amount, Amount, error) {
	a, err := fixedpoint.MulDiv(stake, reserves.ReserveA, totalStake)
	if err != nil {
		return Amount{}, Amount{}, err
	}
	b, err := fixedpoint.MulDiv(stake, reserves.ReserveB, totalStake)
	if err != nil {
		return Amount{}, Amount{}, err
	}
	return a, b, nil
}
