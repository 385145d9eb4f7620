package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-formatted money string into a Decimal.
// Accepts values like:
// - "1200.50"
// - "1,200.50"
// - "Rs 1,200"
// - "INR -500"
//
// Conversion always goes through the string representation, never through
// float construction, so form inputs keep their exact value.
func ParseAmount(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s != "" {
			s = strings.ReplaceAll(s, ",", "")
			s = strings.ReplaceAll(s, "INR", "")
			s = strings.ReplaceAll(s, "inr", "")
			s = strings.ReplaceAll(s, "Rs", "")
			s = strings.ReplaceAll(s, "rs", "")
			s = strings.ReplaceAll(s, "₹", "")
			s = strings.TrimSpace(s)
		}
		neg := false
		if strings.HasPrefix(s, "-") {
			neg = true
			s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
		}
		// Strip everything except digits and '.'.
		var b strings.Builder
		b.Grow(len(s) + 1)
		for _, r := range s {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		clean := b.String()
		if clean == "" {
			return decimal.Zero, NewValidationError("invalid amount")
		}
		if neg {
			clean = "-" + clean
		}
		return decimal.NewFromString(clean)
	case float64:
		// Route through the string form to avoid binary representation error.
		return decimal.NewFromString(decimal.NewFromFloat(v).String())
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, NewValidationError("invalid amount")
	}
}

// Money rounds to the 2 fractional digits every persisted monetary
// column carries.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
