package models

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/mr-tron/base58"
)

type EventKind string

const (
	EventVaultInitialized    EventKind = "vault_initialized"
	EventPositionInitialized EventKind = "position_initialized"
	EventLiquidityAdded      EventKind = "liquidity_added"
	EventLiquidityRemoved    EventKind = "liquidity_removed"
	EventSwap                EventKind = "swap"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventVaultInitialized, EventPositionInitialized, EventLiquidityAdded, EventLiquidityRemoved, EventSwap:
		return true
	}
	return false
}

// PoolEvent is one committed pool operation, as published to Redis and
// stored in ClickHouse. Amounts are decimal strings on the wire.
type PoolEvent struct {
	ID        string    `json:"id"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Pool      string    `json:"pool"`
	Kind      EventKind `json:"kind"`

	Depositor string `json:"depositor,omitempty"`
	Token     string `json:"token,omitempty"` // vault token or swap input, "A" or "B"

	AmountIn  fixedpoint.Amount `json:"amount_in"`
	AmountOut fixedpoint.Amount `json:"amount_out"`
	Fee       fixedpoint.Amount `json:"fee"`
	Stake     fixedpoint.Amount `json:"stake"`
	AmountA   fixedpoint.Amount `json:"amount_a"`
	AmountB   fixedpoint.Amount `json:"amount_b"`

	ReserveA   fixedpoint.Amount `json:"reserve_a"`
	ReserveB   fixedpoint.Amount `json:"reserve_b"`
	TotalStake fixedpoint.Amount `json:"total_stake"`
}

// NewEventID derives a stable base58 identifier from the pool, sequence
// and timestamp, in the shape of a transaction signature.
func NewEventID(pool string, seq uint64, ts time.Time) string {
	h := sha256.New()
	h.Write([]byte(pool))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], seq)
	binary.BigEndian.PutUint64(buf[8:], uint64(ts.UnixNano()))
	h.Write(buf[:])
	return base58.Encode(h.Sum(nil))
}

func (e *PoolEvent) String() string {
	switch e.Kind {
	case EventSwap:
		return fmt.Sprintf("[%s] %s swap %s in=%s out=%s fee=%s reserves=(%s, %s)",
			e.Timestamp.Format(time.RFC3339), e.Pool, e.Token, e.AmountIn, e.AmountOut, e.Fee, e.ReserveA, e.ReserveB)
	case EventLiquidityAdded, EventLiquidityRemoved:
		return fmt.Sprintf("[%s] %s %s depositor=%s stake=%s a=%s b=%s total=%s",
			e.Timestamp.Format(time.RFC3339), e.Pool, e.Kind, e.Depositor, e.Stake, e.AmountA, e.AmountB, e.TotalStake)
	default:
		return fmt.Sprintf("[%s] %s %s %s%s", e.Timestamp.Format(time.RFC3339), e.Pool, e.Kind, e.Token, e.Depositor)
	}
}
