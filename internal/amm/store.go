package amm

import (
	"context"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
)

// PoolRecord is the persisted state of one pool.
type PoolRecord struct {
	VaultA    bool        `json:"vault_a"`
	VaultB    bool        `json:"vault_b"`
	Reserves  ReservePair `json:"reserves"`
	Positions []Position  `json:"positions"`
	Sequence  uint64      `json:"sequence"`
}

// Commit is everything one successful operation changes. Positions
// holds only the positions that operation touched.
type Commit struct {
	VaultA     bool
	VaultB     bool
	Reserves   ReservePair
	TotalStake Amount
	Positions  []Position
	Event      *models.PoolEvent
}

// StateStore persists pool state. Commit must be all-or-nothing; when it
// returns an error the controller leaves memory unchanged.
//
// Commit is conditional: the stored sequence must equal
// c.Event.Sequence-1 (zero for a pool never committed), otherwise it
// returns ErrStateConflict and writes nothing.
type StateStore interface {
	// Load returns found=false for a pool that was never committed.
	Load(ctx context.Context, pool string) (rec PoolRecord, found bool, err error)
	Commit(ctx context.Context, pool string, c Commit) error
}

// ExpectedSequence is the stored sequence c was planned against.
func (c Commit) ExpectedSequence() uint64 {
	if c.Event == nil || c.Event.Sequence == 0 {
		return 0
	}
	return c.Event.Sequence - 1
}

// EventSink receives committed events. Delivery is best-effort and
// failures never roll back a commit.
type EventSink interface {
	Publish(ctx context.Context, ev *models.PoolEvent) error
}
