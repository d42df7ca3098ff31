package money

import (
	"encoding/json"
	"math"

	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/shopspring/decimal"
)

// MinorPerMajor is the number of kobo in one naira.
const MinorPerMajor = 100

var (
	// ErrInvalidAmount means the amount is not a whole, positive number of minor units.
	ErrInvalidAmount = apperr.New(apperr.Validation, "amount must be a positive whole number of kobo")

	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// ParseMinor parses a JSON number holding an amount in minor units.
func ParseMinor(n json.Number) (int64, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsInteger() || !d.IsPositive() || d.GreaterThan(maxMinor) {
		return 0, ErrInvalidAmount
	}
	return d.IntPart(), nil
}

// FormatMajor renders minor units as a major-unit string, e.g. 70050 -> "700.50".
func FormatMajor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
