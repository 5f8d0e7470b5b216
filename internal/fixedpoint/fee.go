package fixedpoint

import "fmt"

// Fraction is a fee rate numerator/denominator, e.g. 3/1000 for 0.3%.
type Fraction struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// Validate requires a positive denominator and a rate below 100%.
func (f Fraction) Validate() error {
	if f.Denominator == 0 {
		return fmt.Errorf("fee denominator: %w", ErrDivisionByZero)
	}
	if f.Numerator >= f.Denominator {
		return fmt.Errorf("fee %d/%d must be below 1", f.Numerator, f.Denominator)
	}
	return nil
}

// Bps is the rate in basis points, for display.
func (f Fraction) Bps() float64 {
	if f.Denominator == 0 {
		return 0
	}
	return float64(f.Numerator) / float64(f.Denominator) * 10000
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// ApplyFee splits amount into the part that trades and the fee kept by
// the pool: net = floor(amount * (den - num) / den), fee = amount - net.
// Flooring net rounds the fee up.
func ApplyFee(amount Amount, f Fraction) (net, fee Amount, err error) {
	if f.Denominator == 0 {
		return Amount{}, Amount{}, fmt.Errorf("apply fee: %w", ErrDivisionByZero)
	}
	if f.Numerator > f.Denominator {
		return Amount{}, Amount{}, fmt.Errorf("apply fee %s: %w", f, ErrArithmeticOverflow)
	}
	keep := NewAmount(uint64(f.Denominator - f.Numerator))
	net, err = MulDiv(amount, keep, NewAmount(uint64(f.Denominator)))
	if err != nil {
		return Amount{}, Amount{}, fmt.Errorf("apply fee: %w", err)
	}
	fee, err = amount.Sub(net)
	if err != nil {
		return Amount{}, Amount{}, fmt.Errorf("apply fee: %w", err)
	}
	return net, fee, nil
}
