// Package amount provides shared parsing and formatting for monetary values.
//
// All amounts are unsigned arbitrary-precision integers in the smallest
// unit of the settlement asset, carried as decimal strings at the edges
// and as *big.Int wherever arithmetic happens.
package amount

import (
	"math/big"
	"strings"
)

// Parse converts a decimal integer string (e.g. "1500") to a big.Int.
// Returns (nil, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Fractional values, signs, and non-digit characters are rejected
func Parse(s string) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(0), true
	}

	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, false
		}
	}

	result, ok := new(big.Int).SetString(s, 10)
	return result, ok
}

// Format converts a big.Int back to its canonical decimal string.
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// IsValid reports whether s parses as a non-negative amount.
func IsValid(s string) bool {
	_, ok := Parse(s)
	return ok
}
