package domain

import (
	"fmt"
	"math"
)

// Amounts are int64 minor units (cents). The backend speaks major units.

// ToMinor converts a major-unit amount from the wire into minor units.
// Amounts beyond MaxAmount in either direction cannot be represented and
// become 0, like a missing number.
func ToMinor(major float64) int64 {
	if math.IsNaN(major) || math.IsInf(major, 0) {
		return 0
	}
	minor := math.Round(major * 100)
	if math.Abs(minor) > float64(MaxAmount) {
		return 0
	}
	return int64(minor)
}

// FormatAmount renders minor units as "KES 131,000.00".
func FormatAmount(minor int64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := minor / 100
	cents := minor % 100

	digits := fmt.Sprintf("%d", whole)
	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	return fmt.Sprintf("%s %s%s.%02d", currency, sign, out, cents)
}
