package pricing

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxPages bounds a single quote. Larger counts are clamped.
const MaxPages = 10000

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ErrAmountOutOfRange is returned when an amount does not fit in int64 minor units.
var ErrAmountOutOfRange = errors.New("pricing: amount out of range")

// NormalizePages coerces raw page input to an integer in [1, MaxPages]. Zero, negative,
// fractional and non-numeric input all become 1; oversized counts become MaxPages.
func NormalizePages(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && n > 0 {
			return MaxPages
		}
		return 1
	}
	return ClampPages(n)
}

// ClampPages applies the same bounds to an already numeric page count.
func ClampPages(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxPages:
		return MaxPages
	}
	return n
}

// FormatAmount renders a money value with two decimals. Rounding happens here and nowhere else.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// MinorUnits converts an amount to integer minor currency units, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(hundred).Round(0)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrAmountOutOfRange
	}
	return minor.IntPart(), nil
}
