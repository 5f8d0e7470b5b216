package flags

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPaused      = errors.New("pool paused")
	ErrInvalidPool = errors.New("invalid pool name")
)

// Scope is a group of pool operations that can be paused on its own.
type Scope string

const (
	ScopeSwaps     Scope = "swaps"
	ScopeLiquidity Scope = "liquidity"
)

// Pause is the operator switch for one pool. The zero value leaves
// everything open.
type Pause struct {
	Pool      string    `json:"pool"`
	Swaps     bool      `json:"swaps"`
	Liquidity bool      `json:"liquidity"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Blocks reports whether operations in scope s are paused.
func (p Pause) Blocks(s Scope) bool {
	switch s {
	case ScopeSwaps:
		return p.Swaps
	case ScopeLiquidity:
		return p.Liquidity
	}
	return false
}

func (p Pause) active() bool { return p.Swaps || p.Liquidity }

// Store reads and writes pool pauses.
type Store interface {
	Get(ctx context.Context, pool string) (Pause, error)
	Set(ctx context.Context, p Pause) (Pause, error)
	List(ctx context.Context) ([]Pause, error)
}
