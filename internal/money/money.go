// Package money holds the construction policies for monetary decimals.
// Arithmetic itself is shopspring/decimal; native floating point is only
// used transiently to synthesize pseudo-random seed values before
// conversion.
package money

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// SeedPlaces is the fractional precision of synthesized seed balances,
// matching the decimal(18,6) columns of the ledger schema.
const SeedPlaces = 6

// ParseOr coerces raw into an exact decimal, returning fallback when raw is
// not a finite number. Malformed amounts thereby degrade to a well-defined
// value instead of failing request validation.
func ParseOr(raw string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fallback
	}
	return d
}

// SeedBalance synthesizes a nonzero pseudo-random balance in (0, limit],
// truncated toward zero to SeedPlaces fractional digits. Used to seed newly
// provisioned accounts.
func SeedBalance(limit float64) decimal.Decimal {
	if limit <= 0 {
		limit = 1
	}
	seed := decimal.NewFromFloat((1 - rand.Float64()) * limit).Truncate(SeedPlaces)
	if seed.LessThanOrEqual(decimal.Zero) {
		// Truncation of a tiny positive float can hit zero exactly.
		return decimal.New(1, -SeedPlaces)
	}
	return seed
}
