// Package walletnumber generates the shareable 13-digit wallet numbers.
package walletnumber

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	// Prefix leads every wallet number.
	Prefix = "4"
	// Length is the full number of digits, prefix included.
	Length = 13
)

var suffixSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Length-len(Prefix))), nil)

// Generate returns a fresh candidate number. Uniqueness is enforced by the
// store; callers retry on a duplicate.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (string, error) {
	n, err := rand.Int(r, suffixSpace)
	if err != nil {
		return "", fmt.Errorf("wallet number: %w", err)
	}
	return fmt.Sprintf("%s%0*d", Prefix, Length-len(Prefix), n), nil
}

// Valid reports whether s has the wallet number shape.
func Valid(s string) bool {
	if len(s) != Length || s[:len(Prefix)] != Prefix {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
