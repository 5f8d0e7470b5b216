package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// AmountBits is the width of every reserve, stake and trade amount.
const AmountBits = 128

var maxAmount = func() uint256.Int {
	var m uint256.Int
	m.Lsh(uint256.NewInt(1), AmountBits)
	m.SubUint64(&m, 1)
	return m
}()

// Amount is an unsigned 128-bit quantity of token base units.
// The zero value is a valid zero amount.
type Amount struct {
	v uint256.Int
}

// Zero is the zero amount.
var Zero Amount

func NewAmount(u uint64) Amount {
	var a Amount
	a.v.SetUint64(u)
	return a
}

// MaxAmount returns 2^128 - 1.
func MaxAmount() Amount {
	return Amount{v: maxAmount}
}

// ParseAmount parses a base-10 string of token base units.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrMalformedAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrMalformedAmount, s, err)
	}
	if v.BitLen() > AmountBits {
		return Amount{}, fmt.Errorf("%w: %s exceeds %d bits", ErrArithmeticOverflow, s, AmountBits)
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is ParseAmount for constants in tests and fixtures.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromBig converts a non-negative big.Int that fits in 128 bits.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil || b.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: negative or nil", ErrMalformedAmount)
	}
	if b.BitLen() > AmountBits {
		return Amount{}, fmt.Errorf("%w: %s exceeds %d bits", ErrArithmeticOverflow, b, AmountBits)
	}
	v, _ := uint256.FromBig(b)
	return Amount{v: *v}, nil
}

func fromWord(v *uint256.Int) (Amount, error) {
	if v.BitLen() > AmountBits {
		return Amount{}, fmt.Errorf("%w: result needs %d bits", ErrArithmeticOverflow, v.BitLen())
	}
	return Amount{v: *v}, nil
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

func (a Amount) String() string { return a.v.Dec() }

func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Uint64 reports false when a does not fit.
func (a Amount) Uint64() (uint64, bool) {
	if !a.v.IsUint64() {
		return 0, false
	}
	return a.v.Uint64(), true
}

// Add returns a + b or ErrArithmeticOverflow past 128 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum uint256.Int
	sum.Add(&a.v, &b.v)
	out, err := fromWord(&sum)
	if err != nil {
		return Amount{}, fmt.Errorf("%s + %s: %w", a, b, err)
	}
	return out, nil
}

// Sub returns a - b. Underflow is reported as ErrArithmeticOverflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	var diff uint256.Int
	if _, underflow := diff.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, fmt.Errorf("%s - %s: %w (underflow)", a, b, ErrArithmeticOverflow)
	}
	return Amount{v: diff}, nil
}

// MarshalText encodes the amount as a decimal string, so JSON carries
// amounts as strings.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
