package amm

import (
	"fmt"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10000

// MinimumOutput applies a slippage tolerance to a quoted output
// slippageBps: basis points (e.g., 100 = 1%, 50 = 0.5%)
func MinimumOutput(amountOut Amount, slippageBps uint16) Amount {
	if slippageBps >= BpsDenominator {
		return fixedpoint.Zero // 100% slippage = no output
	}

	// minOut = amountOut * (10000 - slippageBps) / 10000, cannot overflow
	factor := fixedpoint.NewAmount(uint64(BpsDenominator - slippageBps))
	minOut, err := fixedpoint.MulDiv(amountOut, factor, fixedpoint.NewAmount(BpsDenominator))
	if err != nil {
		return fixedpoint.Zero
	}
	return minOut
}

// ValidatePriceImpact checks if price impact exceeds threshold
func ValidatePriceImpact(priceImpact float64, maxImpactBps uint16) error {
	maxImpact := float64(maxImpactBps) / BpsDenominator

	if priceImpact > maxImpact {
		return fmt.Errorf("%w: %.4f%% exceeds max %.4f%%",
			ErrPriceImpactTooHigh, priceImpact*100, maxImpact*100)
	}

	return nil
}

// FeeBps converts a fee fraction to whole basis points, rounding down.
func FeeBps(fee FeeConfig) uint16 {
	if fee.Denominator == 0 {
		return 0
	}
	return uint16(uint64(fee.Numerator) * BpsDenominator / uint64(fee.Denominator))
}
