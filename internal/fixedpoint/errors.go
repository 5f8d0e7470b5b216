package fixedpoint

import "errors"

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrMalformedAmount    = errors.New("malformed amount")
)
