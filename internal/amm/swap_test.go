package amm

import (
	"math/rand"
	"testing"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultFee = FeeConfig{Numerator: 3, Denominator: 1000}

func newEngine(t *testing.T, fee FeeConfig) *SwapEngine {
	t.Helper()
	e, err := NewSwapEngine(fee)
	require.NoError(t, err)
	return e
}

func pair(a, b uint64) ReservePair {
	return ReservePair{ReserveA: amt(a), ReserveB: amt(b)}
}

func TestSwapEngine_Quote(t *testing.T) {
	e := newEngine(t, defaultFee)

	res, err := e.Quote(pair(1_000_000_000, 1_000_000_000), TokenA, amt(100_000_000))
	require.NoError(t, err)

	assert.Equal(t, "99700000", res.InputAfterFee.String())
	assert.Equal(t, "300000", res.FeeCharged.String())
	assert.Equal(t, "90661089", res.OutputAmount.String())
	assert.Equal(t, "1100000000", res.NewReserves.ReserveA.String())
	assert.Equal(t, "909338911", res.NewReserves.ReserveB.String())

	// Output is positive and below the input at a 1:1 price
	assert.False(t, res.OutputAmount.IsZero())
	assert.Equal(t, -1, res.OutputAmount.Cmp(amt(100_000_000)))
}

func TestSwapEngine_QuoteErrors(t *testing.T) {
	e := newEngine(t, defaultFee)

	tests := []struct {
		name      string
		reserves  ReservePair
		token     Token
		amount    Amount
		expectErr error
	}{
		{name: "zero input", reserves: pair(1000, 1000), token: TokenA, amount: amt(0), expectErr: ErrInvalidAmount},
		{name: "bad token", reserves: pair(1000, 1000), token: Token(0), amount: amt(1), expectErr: ErrInvalidToken},
		{name: "empty reserve", reserves: pair(1000, 0), token: TokenA, amount: amt(10), expectErr: ErrPoolNotActive},
		// 1 unit in is all fee, nothing comes out
		{name: "dust input", reserves: pair(1000, 1000), token: TokenA, amount: amt(1), expectErr: ErrInsufficientLiquidity},
		// output rounds to zero against a deep input side
		{name: "rounds to zero", reserves: pair(1_000_000_000, 10), token: TokenA, amount: amt(1000), expectErr: ErrInsufficientLiquidity},
		{name: "overflow", reserves: ReservePair{ReserveA: fixedpoint.MaxAmount(), ReserveB: amt(1000)}, token: TokenA, amount: amt(1000), expectErr: ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Quote(tt.reserves, tt.token, tt.amount)
			assert.ErrorIs(t, err, tt.expectErr)
		})
	}
}

func TestSwapEngine_InvariantGrows(t *testing.T) {
	e := newEngine(t, defaultFee)
	rng := rand.New(rand.NewSource(7))
	reserves := pair(5_000_000_000, 2_000_000_000)

	for i := 0; i < 500; i++ {
		in := TokenA
		if i%2 == 1 {
			in = TokenB
		}
		amount := amt(uint64(rng.Int63n(50_000_000)) + 1000)

		res, err := e.Quote(reserves, in, amount)
		require.NoError(t, err)

		before := reserves.Invariant()
		after := res.NewReserves.Invariant()
		require.Equal(t, 1, after.Cmp(before), "k must strictly grow at step %d", i)
		reserves = res.NewReserves
	}
}

func TestSwapEngine_ZeroFeeKeepsInvariant(t *testing.T) {
	e := newEngine(t, FeeConfig{Numerator: 0, Denominator: 1})
	reserves := pair(1_000_000, 1_000_000)

	res, err := e.Quote(reserves, TokenB, amt(12_345))
	require.NoError(t, err)
	assert.True(t, res.FeeCharged.IsZero())
	assert.GreaterOrEqual(t, res.NewReserves.Invariant().Cmp(reserves.Invariant()), 0)
}

func TestSwapEngine_PlanEnforcesMinimum(t *testing.T) {
	e := newEngine(t, defaultFee)
	reserves := pair(1_000_000_000, 1_000_000_000)

	_, _, err := e.Plan(reserves, SwapRequest{
		InputToken:    TokenA,
		InputAmount:   amt(100_000_000),
		MinimumOutput: amt(90_661_090),
	})
	assert.ErrorIs(t, err, ErrSlippageExceeded)

	res, ops, err := e.Plan(reserves, SwapRequest{
		InputToken:    TokenA,
		InputAmount:   amt(100_000_000),
		MinimumOutput: amt(90_661_089),
	})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, Credit(TokenA, amt(100_000_000)), ops[0])
	assert.Equal(t, Debit(TokenB, res.OutputAmount), ops[1])
}

func TestSpotPrice(t *testing.T) {
	reserves := pair(2_000, 5_000)

	p, err := SpotPrice(reserves, TokenA)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, p, 1e-12)

	p, err = SpotPrice(reserves, TokenB)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, p, 1e-12)

	_, err = SpotPrice(pair(0, 5_000), TokenA)
	assert.ErrorIs(t, err, ErrPoolNotActive)
}

func TestSwapEngine_PriceImpact(t *testing.T) {
	e := newEngine(t, defaultFee)
	reserves := pair(1_000_000_000, 1_000_000_000)

	impact, err := e.PriceImpact(reserves, TokenA, amt(100_000_000))
	require.NoError(t, err)
	// effective price 90_661_089 / 100_000_000 against spot 1
	assert.InDelta(t, 0.09338911, impact, 1e-12)

	// Rounding costs the trader under two units of output, so impact is
	// non-decreasing across doublings once size >= sqrt(2 * reserve).
	prev := -1.0
	for size := uint64(45_000); size <= 10_000_000_000; size *= 2 {
		impact, err := e.PriceImpact(reserves, TokenA, amt(size))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, impact, prev, "size %d", size)
		prev = impact
	}

	_, err = e.PriceImpact(reserves, TokenA, amt(1))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestSwapEngine_PriceImpactRoundingAtSmallSizes(t *testing.T) {
	e := newEngine(t, defaultFee)
	reserves := pair(1_000_000_000, 1_000_000_000)

	// Both lose 5 units to fee and rounding; the larger trade spreads
	// them thinner.
	small, err := e.Quote(reserves, TokenA, amt(1_001))
	require.NoError(t, err)
	larger, err := e.Quote(reserves, TokenA, amt(1_002))
	require.NoError(t, err)

	assert.Equal(t, "996", small.OutputAmount.String())
	assert.Equal(t, "997", larger.OutputAmount.String())
	assert.InDelta(t, 5.0/1001, small.PriceImpact(), 1e-15)
	assert.InDelta(t, 5.0/1002, larger.PriceImpact(), 1e-15)
	assert.Less(t, larger.PriceImpact(), small.PriceImpact())
}

func TestSwapResult_PriceImpactUsesPricedReserves(t *testing.T) {
	e := newEngine(t, defaultFee)

	res, err := e.Quote(pair(1_000_000_000, 1_000_000_000), TokenA, amt(100_000_000))
	require.NoError(t, err)
	assert.InDelta(t, 0.09338911, res.PriceImpact(), 1e-12)

	// Later reserves do not change a result that was already priced
	moved, err := e.PriceImpact(res.NewReserves, TokenA, amt(100_000_000))
	require.NoError(t, err)
	assert.NotEqual(t, moved, res.PriceImpact())
	assert.InDelta(t, 0.09338911, res.PriceImpact(), 1e-12)
}

func TestNewSwapEngine_InvalidFee(t *testing.T) {
	_, err := NewSwapEngine(FeeConfig{Numerator: 1, Denominator: 0})
	assert.ErrorIs(t, err, ErrInvalidFee)

	_, err = NewSwapEngine(FeeConfig{Numerator: 5, Denominator: 5})
	assert.ErrorIs(t, err, ErrInvalidFee)
}

func TestMinimumOutput(t *testing.T) {
	assert.Equal(t, "9950", MinimumOutput(amt(10_000), 50).String())
	assert.Equal(t, "10000", MinimumOutput(amt(10_000), 0).String())
	assert.True(t, MinimumOutput(amt(10_000), 10_000).IsZero())

	assert.Equal(t, uint16(30), FeeBps(defaultFee))
	assert.Equal(t, uint16(25), FeeBps(FeeConfig{Numerator: 25, Denominator: 10_000}))

	assert.NoError(t, ValidatePriceImpact(0.01, 100))
	assert.ErrorIs(t, ValidatePriceImpact(0.0101, 100), ErrPriceImpactTooHigh)
}

func TestSwapEngine_FeeRoundsUp(t *testing.T) {
	e := newEngine(t, defaultFee)

	// 334 * 3 / 1000 = 1.002; the pool keeps 2, not 1
	res, err := e.Quote(pair(1_000_000_000, 1_000_000_000), TokenA, amt(334))
	require.NoError(t, err)
	assert.Equal(t, "332", res.InputAfterFee.String())
	assert.Equal(t, "2", res.FeeCharged.String())
}
