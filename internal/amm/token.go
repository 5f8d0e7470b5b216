package amm

import (
	"fmt"
	"strings"
)

// Token selects one side of a two-asset pool.
type Token uint8

const (
	TokenA Token = iota + 1
	TokenB
)

// Tokens lists both sides in vault order.
var Tokens = [2]Token{TokenA, TokenB}

func ParseToken(s string) (Token, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return TokenA, nil
	case "B":
		return TokenB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidToken, s)
}

func (t Token) Valid() bool { return t == TokenA || t == TokenB }

// Other returns the opposite side. Only meaningful for valid tokens.
func (t Token) Other() Token {
	if t == TokenA {
		return TokenB
	}
	return TokenA
}

func (t Token) String() string {
	switch t {
	case TokenA:
		return "A"
	case TokenB:
		return "B"
	}
	return fmt.Sprintf("Token(%d)", uint8(t))
}

func (t Token) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidToken, uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := ParseToken(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Token) index() int { return int(t) - 1 }
