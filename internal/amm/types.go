package amm

import (
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/gagliardetto/solana-go"
)

type Amount = fixedpoint.Amount

// FeeConfig is the swap fee as numerator/denominator, fixed for the pool's lifetime.
type FeeConfig = fixedpoint.Fraction

// Depositor identifies a liquidity provider. Callers are pre-verified.
type Depositor = solana.PublicKey

// ReservePair holds the quantities in both vaults.
type ReservePair struct {
	ReserveA Amount `json:"reserve_a"`
	ReserveB Amount `json:"reserve_b"`
}

// Of returns the reserve on the given side.
func (r ReservePair) Of(t Token) Amount {
	if t == TokenB {
		return r.ReserveB
	}
	return r.ReserveA
}

func (r ReservePair) with(t Token, a Amount) ReservePair {
	if t == TokenB {
		r.ReserveB = a
	} else {
		r.ReserveA = a
	}
	return r
}

// Invariant returns k = A * B.
func (r ReservePair) Invariant() fixedpoint.Wide {
	return fixedpoint.Mul(r.ReserveA, r.ReserveB)
}

func (r ReservePair) Empty() bool {
	return r.ReserveA.IsZero() || r.ReserveB.IsZero()
}

func (r ReservePair) String() string {
	return fmt.Sprintf("(A=%s, B=%s)", r.ReserveA, r.ReserveB)
}

// Position is a depositor's stake. Created on first deposit and never removed;
// a zero stake is a valid terminal state. UpdatedAt is the time of creation
// or of the last deposit.
type Position struct {
	Depositor    Depositor `json:"depositor"`
	StakedAmount Amount    `json:"staked_amount"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SwapRequest struct {
	InputToken    Token  `json:"input_token"`
	InputAmount   Amount `json:"input_amount"`
	MinimumOutput Amount `json:"minimum_output"`
}

// SwapResult describes an executed or quoted swap. NewReserves are the
// reserves after crediting the gross input and debiting the output.
type SwapResult struct {
	InputToken       Token       `json:"input_token"`
	InputAmount      Amount      `json:"input_amount"`
	InputAfterFee    Amount      `json:"input_after_fee"`
	OutputAmount     Amount      `json:"output_amount"`
	FeeCharged       Amount      `json:"fee_charged"`
	PreviousReserves ReservePair `json:"previous_reserves"`
	NewReserves      ReservePair `json:"new_reserves"`
}

// LiquidityResult is returned by AddLiquidity and RemoveLiquidity.
type LiquidityResult struct {
	Position    Position    `json:"position"`
	Stake       Amount      `json:"stake"`
	AmountA     Amount      `json:"amount_a"`
	AmountB     Amount      `json:"amount_b"`
	NewReserves ReservePair `json:"new_reserves"`
	TotalStake  Amount      `json:"total_stake"`
}

// PoolState is derived from vault flags and reserves, never stored.
type PoolState uint8

const (
	StateUninitialized PoolState = iota
	StateVaultsReady
	StateActive
)

func (s PoolState) String() string {
	switch s {
	case StateVaultsReady:
		return "vaults_ready"
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

func (s PoolState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PoolInfo is a read-only view of a pool.
type PoolInfo struct {
	Name       string      `json:"name"`
	State      PoolState   `json:"state"`
	Fee        FeeConfig   `json:"fee"`
	VaultA     bool        `json:"vault_a_initialized"`
	VaultB     bool        `json:"vault_b_initialized"`
	Reserves   ReservePair `json:"reserves"`
	TotalStake Amount      `json:"total_stake"`
	Positions  int         `json:"positions"`
}
