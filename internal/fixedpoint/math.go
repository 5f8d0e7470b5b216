package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Wide is a 256-bit intermediate such as the invariant k = x * y.
// The product of two Amounts always fits.
type Wide struct {
	v uint256.Int
}

// Mul returns the exact 256-bit product a * b.
func Mul(a, b Amount) Wide {
	var w Wide
	w.v.Mul(&a.v, &b.v)
	return w
}

func (w Wide) Cmp(o Wide) int { return w.v.Cmp(&o.v) }

func (w Wide) IsZero() bool { return w.v.IsZero() }

func (w Wide) String() string { return w.v.Dec() }

// Div returns floor(w / d).
func (w Wide) Div(d Amount) (Amount, error) {
	if d.IsZero() {
		return Amount{}, fmt.Errorf("%s / 0: %w", w, ErrDivisionByZero)
	}
	var q uint256.Int
	q.Div(&w.v, &d.v)
	return fromWord(&q)
}

// DivCeil returns ceil(w / d).
func (w Wide) DivCeil(d Amount) (Amount, error) {
	if d.IsZero() {
		return Amount{}, fmt.Errorf("%s / 0: %w", w, ErrDivisionByZero)
	}
	var q, r uint256.Int
	q.DivMod(&w.v, &d.v, &r)
	if !r.IsZero() {
		// r != 0 implies d > 1, so q < 2^255.
		q.AddUint64(&q, 1)
	}
	return fromWord(&q)
}

// MulDiv returns floor(a * b / d) with a 256-bit intermediate product.
func MulDiv(a, b, d Amount) (Amount, error) {
	out, err := Mul(a, b).Div(d)
	if err != nil {
		return Amount{}, fmt.Errorf("muldiv(%s, %s, %s): %w", a, b, d, err)
	}
	return out, nil
}

// MulDivCeil returns ceil(a * b / d).
func MulDivCeil(a, b, d Amount) (Amount, error) {
	out, err := Mul(a, b).DivCeil(d)
	if err != nil {
		return Amount{}, fmt.Errorf("muldivceil(%s, %s, %s): %w", a, b, d, err)
	}
	return out, nil
}
