package amm

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
)

// ledgerChange is a computed but not yet applied ledger update.
type ledgerChange struct {
	position   Position
	totalStake Amount
	created    bool
}

// LiquidityLedger tracks each depositor's stake and the pool-wide total.
type LiquidityLedger struct {
	positions map[Depositor]Position
	total     Amount
}

func NewLiquidityLedger() *LiquidityLedger {
	return &LiquidityLedger{positions: make(map[Depositor]Position)}
}

func (l *LiquidityLedger) InitializePosition(d Depositor, now time.Time) (Position, error) {
	ch, err := l.planInitialize(d, now)
	if err != nil {
		return Position{}, err
	}
	l.apply(ch)
	return ch.position, nil
}

// Deposit adds amount to an existing position.
func (l *LiquidityLedger) Deposit(d Depositor, amount Amount, now time.Time) (Position, error) {
	ch, err := l.planDeposit(d, amount, now, false)
	if err != nil {
		return Position{}, err
	}
	l.apply(ch)
	return ch.position, nil
}

// Withdraw removes amount from a position. UpdatedAt is left as is so it
// keeps tracking the last deposit.
func (l *LiquidityLedger) Withdraw(d Depositor, amount Amount) (Position, error) {
	ch, err := l.planWithdraw(d, amount)
	if err != nil {
		return Position{}, err
	}
	l.apply(ch)
	return ch.position, nil
}

func (l *LiquidityLedger) Position(d Depositor) (Position, bool) {
	p, ok := l.positions[d]
	return p, ok
}

func (l *LiquidityLedger) TotalStake() Amount { return l.total }

func (l *LiquidityLedger) Len() int { return len(l.positions) }

// Positions returns every position ordered by depositor key.
func (l *LiquidityLedger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Depositor[:], out[j].Depositor[:]) < 0
	})
	return out
}

func (l *LiquidityLedger) planInitialize(d Depositor, now time.Time) (ledgerChange, error) {
	if _, ok := l.positions[d]; ok {
		return ledgerChange{}, fmt.Errorf("position %s: %w", d, ErrAlreadyInitialized)
	}
	return ledgerChange{
		position:   Position{Depositor: d, UpdatedAt: now},
		totalStake: l.total,
		created:    true,
	}, nil
}

// planDeposit creates the position when create is set and it does not exist.
func (l *LiquidityLedger) planDeposit(d Depositor, amount Amount, now time.Time, create bool) (ledgerChange, error) {
	pos, ok := l.positions[d]
	if !ok && !create {
		return ledgerChange{}, fmt.Errorf("deposit for %s: %w", d, ErrPositionNotFound)
	}
	if !ok {
		pos = Position{Depositor: d}
	}
	staked, err := pos.StakedAmount.Add(amount)
	if err != nil {
		return ledgerChange{}, fmt.Errorf("deposit stake: %w", err)
	}
	total, err := l.total.Add(amount)
	if err != nil {
		return ledgerChange{}, fmt.Errorf("deposit total stake: %w", err)
	}
	pos.StakedAmount = staked
	pos.UpdatedAt = now
	return ledgerChange{position: pos, totalStake: total, created: !ok}, nil
}

func (l *LiquidityLedger) planWithdraw(d Depositor, amount Amount) (ledgerChange, error) {
	pos, ok := l.positions[d]
	if !ok {
		return ledgerChange{}, fmt.Errorf("withdraw for %s: %w", d, ErrPositionNotFound)
	}
	if amount.Cmp(pos.StakedAmount) > 0 {
		return ledgerChange{}, fmt.Errorf("withdraw %s of %s staked: %w", amount, pos.StakedAmount, ErrInsufficientStake)
	}
	staked, err := pos.StakedAmount.Sub(amount)
	if err != nil {
		return ledgerChange{}, err
	}
	total, err := l.total.Sub(amount)
	if err != nil {
		return ledgerChange{}, fmt.Errorf("withdraw total stake: %w", err)
	}
	pos.StakedAmount = staked
	return ledgerChange{position: pos, totalStake: total}, nil
}

func (l *LiquidityLedger) apply(ch ledgerChange) {
	l.positions[ch.position.Depositor] = ch.position
	l.total = ch.totalStake
}

// restore loads persisted positions and recomputes the total.
func (l *LiquidityLedger) restore(positions []Position) error {
	restored := make(map[Depositor]Position, len(positions))
	total := fixedpoint.Zero
	for _, p := range positions {
		next, err := total.Add(p.StakedAmount)
		if err != nil {
			return fmt.Errorf("restore total stake: %w", err)
		}
		total = next
		restored[p.Depositor] = p
	}
	l.positions = restored
	l.total = total
	return nil
}
