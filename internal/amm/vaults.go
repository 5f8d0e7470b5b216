package amm

import "fmt"

// VaultOp is a single credit or debit of one vault.
type VaultOp struct {
	Token  Token
	Amount Amount
	Debit  bool
}

func Credit(t Token, amount Amount) VaultOp { return VaultOp{Token: t, Amount: amount} }

func Debit(t Token, amount Amount) VaultOp { return VaultOp{Token: t, Amount: amount, Debit: true} }

// ReserveVaults holds the two reserves and is the only component that
// changes them. It does no locking of its own; the controller serializes
// access.
type ReserveVaults struct {
	initialized [2]bool
	reserves    ReservePair
}

func NewReserveVaults() *ReserveVaults {
	return &ReserveVaults{}
}

// Initialize creates the vault for t. A second call fails with
// ErrAlreadyInitialized and changes nothing.
func (v *ReserveVaults) Initialize(t Token) error {
	if !t.Valid() {
		return fmt.Errorf("initialize vault: %w", ErrInvalidToken)
	}
	if v.initialized[t.index()] {
		return fmt.Errorf("vault %s: %w", t, ErrAlreadyInitialized)
	}
	v.initialized[t.index()] = true
	return nil
}

func (v *ReserveVaults) Initialized(t Token) bool {
	return t.Valid() && v.initialized[t.index()]
}

// Ready reports whether both vaults exist.
func (v *ReserveVaults) Ready() bool {
	return v.initialized[0] && v.initialized[1]
}

func (v *ReserveVaults) Credit(t Token, amount Amount) error {
	_, err := v.Apply(Credit(t, amount))
	return err
}

func (v *ReserveVaults) Debit(t Token, amount Amount) error {
	_, err := v.Apply(Debit(t, amount))
	return err
}

// Snapshot returns a copy of both reserves.
func (v *ReserveVaults) Snapshot() ReservePair {
	return v.reserves
}

// Preview validates ops in order against a scratch copy and returns the
// resulting reserves without touching the vaults.
func (v *ReserveVaults) Preview(ops ...VaultOp) (ReservePair, error) {
	next := v.reserves
	for _, op := range ops {
		if !op.Token.Valid() {
			return ReservePair{}, fmt.Errorf("vault op: %w", ErrInvalidToken)
		}
		if !v.initialized[op.Token.index()] {
			return ReservePair{}, fmt.Errorf("vault %s not initialized: %w", op.Token, ErrPoolNotActive)
		}
		cur := next.Of(op.Token)
		if op.Debit {
			if op.Amount.Cmp(cur) > 0 {
				return ReservePair{}, fmt.Errorf("debit %s from vault %s holding %s: %w",
					op.Amount, op.Token, cur, ErrInsufficientReserve)
			}
			updated, err := cur.Sub(op.Amount)
			if err != nil {
				return ReservePair{}, err
			}
			next = next.with(op.Token, updated)
			continue
		}
		updated, err := cur.Add(op.Amount)
		if err != nil {
			return ReservePair{}, fmt.Errorf("credit vault %s: %w", op.Token, err)
		}
		next = next.with(op.Token, updated)
	}
	return next, nil
}

// Apply commits ops as one unit: either all of them take effect or none.
func (v *ReserveVaults) Apply(ops ...VaultOp) (ReservePair, error) {
	next, err := v.Preview(ops...)
	if err != nil {
		return v.reserves, err
	}
	v.reserves = next
	return next, nil
}

// restore replaces the vault state with a persisted copy.
func (v *ReserveVaults) restore(vaultA, vaultB bool, reserves ReservePair) {
	v.initialized = [2]bool{vaultA, vaultB}
	v.reserves = reserves
}
