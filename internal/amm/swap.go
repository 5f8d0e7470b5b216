package amm

import (
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
)

// SwapEngine prices trades against a reserve snapshot with the
// constant-product rule x * y = k. It holds no reserves itself.
type SwapEngine struct {
	fee FeeConfig
}

func NewSwapEngine(fee FeeConfig) (*SwapEngine, error) {
	if err := fee.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFee, err)
	}
	return &SwapEngine{fee: fee}, nil
}

func (e *SwapEngine) Fee() FeeConfig { return e.fee }

// Quote computes the output of selling amountIn of token `in` into
// reserves without validating a minimum:
//
//	in'      = floor(in * (den - num) / den)
//	k        = Rin * Rout
//	Rout_new = ceil(k / (Rin + in'))
//	out      = Rout - Rout_new
//
// Rounding up Rout_new keeps k from decreasing.
func (e *SwapEngine) Quote(reserves ReservePair, in Token, amountIn Amount) (SwapResult, error) {
	if !in.Valid() {
		return SwapResult{}, fmt.Errorf("swap: %w", ErrInvalidToken)
	}
	if amountIn.IsZero() {
		return SwapResult{}, fmt.Errorf("swap input: %w", ErrInvalidAmount)
	}
	out := in.Other()
	rin, rout := reserves.Of(in), reserves.Of(out)
	if rin.IsZero() || rout.IsZero() {
		return SwapResult{}, fmt.Errorf("reserves %s: %w", reserves, ErrPoolNotActive)
	}

	net, fee, err := fixedpoint.ApplyFee(amountIn, e.fee)
	if err != nil {
		return SwapResult{}, err
	}

	k := fixedpoint.Mul(rin, rout)
	rinNew, err := rin.Add(net)
	if err != nil {
		return SwapResult{}, fmt.Errorf("reserve %s after input: %w", in, err)
	}
	routNew, err := k.DivCeil(rinNew)
	if err != nil {
		return SwapResult{}, fmt.Errorf("reserve %s after output: %w", out, err)
	}
	if routNew.Cmp(rout) >= 0 {
		return SwapResult{}, fmt.Errorf("input %s too small for reserves %s: %w", amountIn, reserves, ErrInsufficientLiquidity)
	}
	amountOut, err := rout.Sub(routNew)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut.Cmp(rout) >= 0 {
		return SwapResult{}, fmt.Errorf("output %s drains reserve %s: %w", amountOut, rout, ErrInsufficientLiquidity)
	}

	// The gross input is credited; the fee stays in the pool.
	grossIn, err := rin.Add(amountIn)
	if err != nil {
		return SwapResult{}, fmt.Errorf("reserve %s after input: %w", in, err)
	}
	next := reserves.with(in, grossIn).with(out, routNew)

	return SwapResult{
		InputToken:       in,
		InputAmount:      amountIn,
		InputAfterFee:    net,
		OutputAmount:     amountOut,
		FeeCharged:       fee,
		PreviousReserves: reserves,
		NewReserves:      next,
	}, nil
}

// Plan quotes req and enforces its minimum output. The returned ops
// credit the gross input and debit the output.
func (e *SwapEngine) Plan(reserves ReservePair, req SwapRequest) (SwapResult, []VaultOp, error) {
	res, err := e.Quote(reserves, req.InputToken, req.InputAmount)
	if err != nil {
		return SwapResult{}, nil, err
	}
	if res.OutputAmount.Cmp(req.MinimumOutput) < 0 {
		return SwapResult{}, nil, fmt.Errorf("output %s below minimum %s: %w",
			res.OutputAmount, req.MinimumOutput, ErrSlippageExceeded)
	}
	ops := []VaultOp{
		Credit(req.InputToken, req.InputAmount),
		Debit(req.InputToken.Other(), res.OutputAmount),
	}
	return res, ops, nil
}

// SpotPrice returns the price of base in units of the other token,
// reserveOther / reserveBase. Reporting only.
func SpotPrice(reserves ReservePair, base Token) (float64, error) {
	if !base.Valid() {
		return 0, ErrInvalidToken
	}
	rb, ro := reserves.Of(base), reserves.Of(base.Other())
	if rb.IsZero() || ro.IsZero() {
		return 0, fmt.Errorf("spot price: %w", ErrPoolNotActive)
	}
	f, _ := new(big.Rat).SetFrac(ro.Big(), rb.Big()).Float64()
	return f, nil
}

// PriceImpact returns (spot - effective) / spot for selling amountIn of
// token `in`, where effective = out / amountIn from the exact swap math.
func (e *SwapEngine) PriceImpact(reserves ReservePair, in Token, amountIn Amount) (float64, error) {
	res, err := e.Quote(reserves, in, amountIn)
	if err != nil {
		return 0, err
	}
	return res.PriceImpact(), nil
}

// PriceImpact of a priced swap, measured against the reserves it was
// priced on. It simplifies to 1 - out * Rin / (amountIn * Rout),
// evaluated exactly.
func (r SwapResult) PriceImpact() float64 {
	rin, rout := r.PreviousReserves.Of(r.InputToken), r.PreviousReserves.Of(r.InputToken.Other())
	if r.InputAmount.IsZero() || rout.IsZero() {
		return 0
	}
	num := new(big.Int).Mul(r.OutputAmount.Big(), rin.Big())
	den := new(big.Int).Mul(r.InputAmount.Big(), rout.Big())
	impact, _ := new(big.Rat).Sub(big.NewRat(1, 1), new(big.Rat).SetFrac(num, den)).Float64()
	return impact
}
