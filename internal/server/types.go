package server

import (
	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Kind    string `json:"kind,omitempty"`    // Machine-readable error kind
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK    bool `json:"ok"`
	Pools int  `json:"pools"`
}

type PoolSummary struct {
	Name       string        `json:"name"`
	TokenMintA string        `json:"token_mint_a"`
	TokenMintB string        `json:"token_mint_b"`
	State      amm.PoolState `json:"state"`
}

// PositionRequest initializes a position for a depositor (base58 public key)
type PositionRequest struct {
	Depositor string `json:"depositor"`
}

// LiquidityRequest adds or removes stake; Amount is a decimal string
type LiquidityRequest struct {
	Depositor string            `json:"depositor"`
	Amount    fixedpoint.Amount `json:"amount"`
}

// SwapRequest mirrors amm.SwapRequest with string token names
type SwapRequest struct {
	InputToken    string            `json:"input_token"`
	InputAmount   fixedpoint.Amount `json:"input_amount"`
	MinimumOutput fixedpoint.Amount `json:"minimum_output"`
}

// QuoteResponse is a dry-run swap with a slippage-adjusted minimum output
type QuoteResponse struct {
	amm.SwapResult
	SlippageBps   uint16            `json:"slippage_bps"`
	MinimumOutput fixedpoint.Amount `json:"minimum_output"`
	PriceImpact   float64           `json:"price_impact"`
	FeeBps        uint16            `json:"fee_bps"`
}

type PriceResponse struct {
	Pool  string  `json:"pool"`
	AInB  float64 `json:"a_in_b"`
	BInA  float64 `json:"b_in_a"`
	State string  `json:"state"`
}

type ImpactResponse struct {
	Pool        string            `json:"pool"`
	InputToken  amm.Token         `json:"input_token"`
	Amount      fixedpoint.Amount `json:"amount"`
	PriceImpact float64           `json:"price_impact"`
}

type PauseRequest struct {
	Swaps     bool   `json:"swaps"`
	Liquidity bool   `json:"liquidity"`
	Reason    string `json:"reason"`
}
