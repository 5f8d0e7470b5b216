package amm

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps the last record per pool and can be told to fail.
type memStore struct {
	mu      sync.Mutex
	records   map[string]PoolRecord
	commits   int
	conflicts int
	fail      error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]PoolRecord)}
}

func (s *memStore) Load(_ context.Context, pool string) (PoolRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[pool]
	return rec, ok, nil
}

func (s *memStore) Commit(_ context.Context, pool string, c Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	rec := s.records[pool]
	if rec.Sequence != c.ExpectedSequence() {
		s.conflicts++
		return ErrStateConflict
	}
	rec.VaultA, rec.VaultB, rec.Reserves = c.VaultA, c.VaultB, c.Reserves
	for _, p := range c.Positions {
		replaced := false
		for i := range rec.Positions {
			if rec.Positions[i].Depositor == p.Depositor {
				rec.Positions[i] = p
				replaced = true
			}
		}
		if !replaced {
			rec.Positions = append(rec.Positions, p)
		}
	}
	if c.Event != nil {
		rec.Sequence = c.Event.Sequence
	}
	s.records[pool] = rec
	s.commits++
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []*models.PoolEvent
	fail   bool
}

func (s *recordingSink) Publish(_ context.Context, ev *models.PoolEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) kinds() []models.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "TEST-POOL"
	}
	if cfg.Fee.Denominator == 0 {
		cfg.Fee = defaultFee
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	c, err := NewController(cfg)
	require.NoError(t, err)
	return c
}

// activePool returns a pool seeded with (1e9, 1e9) by one depositor.
func activePool(t *testing.T, cfg Config) (*Controller, solana.PublicKey) {
	t.Helper()
	c := newTestController(t, cfg)
	ctx := context.Background()
	require.NoError(t, c.InitializeVault(ctx, TokenA))
	require.NoError(t, c.InitializeVault(ctx, TokenB))

	lp := solana.NewWallet().PublicKey()
	_, err := c.AddLiquidity(ctx, lp, amt(1_000_000_000))
	require.NoError(t, err)
	return c, lp
}

func TestController_StateTransitions(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, Config{})
	assert.Equal(t, StateUninitialized, c.State())

	_, err := c.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(10)})
	assert.ErrorIs(t, err, ErrPoolNotActive)

	require.NoError(t, c.InitializeVault(ctx, TokenA))
	assert.Equal(t, StateUninitialized, c.State())

	lp := solana.NewWallet().PublicKey()
	_, err = c.AddLiquidity(ctx, lp, amt(100))
	assert.ErrorIs(t, err, ErrPoolNotActive)

	require.NoError(t, c.InitializeVault(ctx, TokenB))
	assert.Equal(t, StateVaultsReady, c.State())

	_, err = c.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(10)})
	assert.ErrorIs(t, err, ErrPoolNotActive)
	_, _, err = c.QuotePrice()
	assert.ErrorIs(t, err, ErrPoolNotActive)

	_, err = c.AddLiquidity(ctx, lp, amt(1_000))
	require.NoError(t, err)
	assert.Equal(t, StateActive, c.State())

	// Draining all stake returns the pool to VaultsReady
	_, err = c.RemoveLiquidity(ctx, lp, amt(1_000))
	require.NoError(t, err)
	assert.Equal(t, StateVaultsReady, c.State())
	assert.True(t, c.Reserves().ReserveA.IsZero())
}

func TestController_InitializeVaultIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := activePool(t, Config{})
	before := c.Reserves()

	err := c.InitializeVault(ctx, TokenA)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Equal(t, before, c.Reserves())
}

func TestController_SwapExample(t *testing.T) {
	ctx := context.Background()
	c, _ := activePool(t, Config{})

	res, err := c.Swap(ctx, SwapRequest{
		InputToken:    TokenA,
		InputAmount:   amt(100_000_000),
		MinimumOutput: amt(90_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, "90661089", res.OutputAmount.String())
	assert.Equal(t, "300000", res.FeeCharged.String())

	reserves := c.Reserves()
	assert.Equal(t, "1100000000", reserves.ReserveA.String())
	assert.Equal(t, "909338911", reserves.ReserveB.String())
	assert.Equal(t, res.NewReserves, reserves)
}

func TestController_SlippageLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := activePool(t, Config{Store: store})
	before := c.Reserves()
	commits := store.commits

	_, err := c.Swap(ctx, SwapRequest{
		InputToken:    TokenA,
		InputAmount:   amt(100_000_000),
		MinimumOutput: amt(95_000_000),
	})
	assert.ErrorIs(t, err, ErrSlippageExceeded)
	assert.Equal(t, before, c.Reserves())
	assert.Equal(t, commits, store.commits)
}

func TestController_RoundTripLoses(t *testing.T) {
	ctx := context.Background()
	c, _ := activePool(t, Config{})

	out, err := c.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(100_000_000)})
	require.NoError(t, err)

	back, err := c.Swap(ctx, SwapRequest{InputToken: TokenB, InputAmount: out.OutputAmount})
	require.NoError(t, err)
	assert.Equal(t, -1, back.OutputAmount.Cmp(amt(100_000_000)))
}

func TestController_ProportionalLiquidity(t *testing.T) {
	ctx := context.Background()
	c, alice := activePool(t, Config{})

	_, err := c.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(100_000_000)})
	require.NoError(t, err)

	bob := solana.NewWallet().PublicKey()
	added, err := c.AddLiquidity(ctx, bob, amt(1_000))
	require.NoError(t, err)
	// ceil(1000 * 1_100_000_000 / 1e9), ceil(1000 * 909_338_911 / 1e9)
	assert.Equal(t, "1100", added.AmountA.String())
	assert.Equal(t, "910", added.AmountB.String())
	assert.Equal(t, "1000001000", added.TotalStake.String())

	removed, err := c.RemoveLiquidity(ctx, bob, amt(1_000))
	require.NoError(t, err)
	assert.Equal(t, "1100", removed.AmountA.String())
	assert.Equal(t, "909", removed.AmountB.String())
	assert.True(t, removed.Position.StakedAmount.IsZero())

	// The position stays with zero stake
	pos, err := c.Position(bob)
	require.NoError(t, err)
	assert.True(t, pos.StakedAmount.IsZero())

	_, err = c.RemoveLiquidity(ctx, bob, amt(1))
	assert.ErrorIs(t, err, ErrInsufficientStake)

	// Alice can take out everything that is left
	reserves := c.Reserves()
	all, err := c.RemoveLiquidity(ctx, alice, amt(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, reserves.ReserveA, all.AmountA)
	assert.Equal(t, reserves.ReserveB, all.AmountB)
}

func TestController_LiquidityErrors(t *testing.T) {
	ctx := context.Background()
	c, lp := activePool(t, Config{})

	_, err := c.AddLiquidity(ctx, lp, amt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.RemoveLiquidity(ctx, lp, amt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.RemoveLiquidity(ctx, solana.NewWallet().PublicKey(), amt(1))
	assert.ErrorIs(t, err, ErrPositionNotFound)

	_, err = c.RemoveLiquidity(ctx, lp, amt(1_000_000_001))
	assert.ErrorIs(t, err, ErrInsufficientStake)

	_, err = c.InitializePosition(ctx, lp)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	_, err = c.Position(solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestController_InitializePosition(t *testing.T) {
	ctx := context.Background()
	c, _ := activePool(t, Config{})
	d := solana.NewWallet().PublicKey()

	pos, err := c.InitializePosition(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, d, pos.Depositor)
	assert.True(t, pos.StakedAmount.IsZero())

	_, err = c.AddLiquidity(ctx, d, amt(10))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Info().Positions)
}

func TestController_WithdrawCooldown(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c, lp := activePool(t, Config{WithdrawCooldown: 100 * time.Second, Now: clock.Now})

	_, err := c.RemoveLiquidity(ctx, lp, amt(10))
	assert.ErrorIs(t, err, ErrWithdrawLocked)

	clock.Advance(99 * time.Second)
	_, err = c.RemoveLiquidity(ctx, lp, amt(10))
	assert.ErrorIs(t, err, ErrWithdrawLocked)

	clock.Advance(time.Second)
	_, err = c.RemoveLiquidity(ctx, lp, amt(10))
	require.NoError(t, err)

	// Withdrawals do not restart the window
	_, err = c.RemoveLiquidity(ctx, lp, amt(10))
	require.NoError(t, err)

	// A new deposit does
	_, err = c.AddLiquidity(ctx, lp, amt(10))
	require.NoError(t, err)
	_, err = c.RemoveLiquidity(ctx, lp, amt(10))
	assert.ErrorIs(t, err, ErrWithdrawLocked)
}

func TestController_StoreFailureIsNotPartial(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sink := &recordingSink{}
	c, lp := activePool(t, Config{Store: store, Sink: sink})

	before := c.Info()
	published := len(sink.kinds())
	store.fail = errors.New("redis unavailable")

	_, err := c.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(1_000_000)})
	assert.ErrorContains(t, err, "redis unavailable")

	_, err = c.AddLiquidity(ctx, lp, amt(1_000))
	assert.Error(t, err)

	_, err = c.RemoveLiquidity(ctx, lp, amt(1_000))
	assert.Error(t, err)

	assert.Equal(t, before, c.Info())
	pos, err := c.Position(lp)
	require.NoError(t, err)
	assert.Equal(t, "1000000000", pos.StakedAmount.String())
	assert.Len(t, sink.kinds(), published)
}

func TestController_LoadRestoresState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, lp := activePool(t, Config{Name: "SOL-USDC", Store: store})

	_, err := c.Swap(ctx, SwapRequest{InputToken: TokenB, InputAmount: amt(5_000_000)})
	require.NoError(t, err)

	reloaded := newTestController(t, Config{Name: "SOL-USDC", Store: store})
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, c.Info(), reloaded.Info())
	pos, err := reloaded.Position(lp)
	require.NoError(t, err)
	assert.Equal(t, "1000000000", pos.StakedAmount.String())

	// Sequence continues where the previous controller stopped
	sink := &recordingSink{}
	reloaded.sink = sink
	_, err = reloaded.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(5_000_000)})
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, uint64(5), sink.events[0].Sequence)
}

func TestController_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	c, lp := activePool(t, Config{Sink: sink})

	_, err := c.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(100_000_000)})
	require.NoError(t, err)
	_, err = c.RemoveLiquidity(ctx, lp, amt(1))
	require.NoError(t, err)

	assert.Equal(t, []models.EventKind{
		models.EventVaultInitialized,
		models.EventVaultInitialized,
		models.EventLiquidityAdded,
		models.EventSwap,
		models.EventLiquidityRemoved,
	}, sink.kinds())

	swap := sink.events[3]
	assert.Equal(t, "A", swap.Token)
	assert.Equal(t, "90661089", swap.AmountOut.String())
	assert.Equal(t, "1100000000", swap.ReserveA.String())
	assert.Equal(t, uint64(4), swap.Sequence)
	assert.NotEmpty(t, swap.ID)

	// A failing sink does not fail the operation
	sink.fail = true
	_, err = c.Swap(ctx, SwapRequest{InputToken: TokenB, InputAmount: amt(1_000_000)})
	assert.NoError(t, err)
}

func TestController_Quotes(t *testing.T) {
	c, _ := activePool(t, Config{})

	aInB, bInA, err := c.QuotePrice()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, aInB, 1e-12)
	assert.InDelta(t, 1.0, bInA, 1e-12)

	impact, err := c.QuotePriceImpact(TokenA, amt(100_000_000))
	require.NoError(t, err)
	assert.InDelta(t, 0.09338911, impact, 1e-12)

	q, err := c.QuoteSwap(SwapRequest{InputToken: TokenA, InputAmount: amt(100_000_000)})
	require.NoError(t, err)
	assert.Equal(t, "90661089", q.OutputAmount.String())

	// Quotes never change reserves
	assert.Equal(t, "1000000000", c.Reserves().ReserveB.String())

	_, err = c.QuoteSwap(SwapRequest{InputToken: TokenA, InputAmount: amt(100_000_000), MinimumOutput: amt(100_000_000)})
	assert.ErrorIs(t, err, ErrSlippageExceeded)
}

func TestController_ConcurrentSwaps(t *testing.T) {
	ctx := context.Background()
	c, _ := activePool(t, Config{})
	k0 := c.Reserves().Invariant()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := TokenA
			if i%2 == 0 {
				in = TokenB
			}
			for j := 0; j < 25; j++ {
				_, err := c.Swap(ctx, SwapRequest{InputToken: in, InputAmount: amt(1_000_000)})
				assert.NoError(t, err)
				_, _, err = c.QuotePrice()
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, c.Reserves().Invariant().Cmp(k0))
}

func TestController_ReplicasSharingStoreDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	first, _ := activePool(t, Config{Name: "SOL-USDC", Store: store})

	second := newTestController(t, Config{Name: "SOL-USDC", Store: store})
	require.NoError(t, second.Load(ctx))

	req := SwapRequest{InputToken: TokenA, InputAmount: amt(100_000_000)}
	r1, err := first.Swap(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "90661089", r1.OutputAmount.String())

	// second priced against stale reserves; the store refuses it and
	// second catches up with what first committed.
	_, err = second.Swap(ctx, req)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, 1, store.conflicts)
	assert.Equal(t, r1.NewReserves, second.Reserves())

	rec, found, err := store.Load(ctx, "SOL-USDC")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(4), rec.Sequence)
	assert.Equal(t, r1.NewReserves, rec.Reserves)

	// Resubmitting is priced on the reserves first left behind
	r2, err := second.Swap(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, r1.NewReserves, r2.PreviousReserves)
	assert.Equal(t, -1, r2.OutputAmount.Cmp(r1.OutputAmount))

	rec, _, err = store.Load(ctx, "SOL-USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.Sequence)
	assert.Equal(t, r2.NewReserves, rec.Reserves)
}

func TestController_ConflictLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sink := &recordingSink{}
	c, _ := activePool(t, Config{Name: "SOL-USDC", Store: store, Sink: sink})
	before := c.Info()
	published := len(sink.kinds())

	store.fail = ErrStateConflict
	_, err := c.Swap(ctx, SwapRequest{InputToken: TokenA, InputAmount: amt(1_000)})
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, before, c.Info())
	assert.Len(t, sink.kinds(), published)
}
