package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// Parse parses a plain decimal string like "40" or "12.5" into a rational.
// Exponents, fractions and other big.Rat notations are rejected so that
// user-entered amounts stay unambiguous.
func Parse(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	if strings.ContainsAny(s, "eE/_ ") {
		return nil, fmt.Errorf("invalid amount format: %s", s)
	}
	if strings.Count(s, ".") > 1 {
		return nil, fmt.Errorf("invalid amount format: %s", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return r, nil
}

// Positive reports whether r is strictly greater than zero.
func Positive(r *big.Rat) bool {
	return r.Sign() > 0
}

// LessOrEqual reports a <= b.
func LessOrEqual(a, b *big.Rat) bool {
	return a.Cmp(b) <= 0
}
