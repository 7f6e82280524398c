package pricing

import (
	"github.com/shopspring/decimal"
)

// Money is an exact base-10 monetary amount. Values keep full precision until
// they are rendered; see Round.
type Money = decimal.Decimal

// Zero is the zero amount.
var Zero = decimal.Zero

// NewMoney parses a decimal literal such as "18.90". It panics on malformed
// input and is meant for static tables.
func NewMoney(value string) Money {
	return decimal.RequireFromString(value)
}

// Round rounds an amount to cents, half away from zero.
func Round(m Money) Money {
	return m.Round(2)
}

// Format renders an amount as "$1,234.56" after rounding to cents.
func Format(m Money) string {
	rounded := Round(m)
	neg := rounded.IsNegative()
	if neg {
		rounded = rounded.Neg()
	}
	s := rounded.StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-2:]

	out := make([]byte, 0, len(s)+len(s)/3+2)
	if neg {
		out = append(out, '-')
	}
	out = append(out, '$')
	rem := len(whole) % 3
	if rem == 0 {
		rem = 3
	}
	out = append(out, whole[:rem]...)
	for i := rem; i < len(whole); i += 3 {
		out = append(out, ',')
		out = append(out, whole[i:i+3]...)
	}
	out = append(out, '.')
	out = append(out, frac...)
	return string(out)
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func decimalFromInt(n int) Money {
	return decimal.NewFromInt(int64(n))
}
