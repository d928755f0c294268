// Package money implements exact minor-unit arithmetic and VAT totals.
//
// Amounts are int64 counts of minor units (cents at the default scale of 2).
// Parsing and multiplication go through arbitrary-precision decimals and round
// half away from zero; float64 never appears on these paths.
package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// DefaultScale is the number of minor-unit digits used when none is given.
const DefaultScale = 2

const maxScale = 12

var (
	// ErrInvalidMoneyFormat is returned for amounts that are not plain decimals.
	ErrInvalidMoneyFormat = shared.NewError(shared.CodeInvalidMoneyFormat, "money: invalid amount format")
	// ErrInvalidQuantity is returned for malformed or non-positive quantities.
	ErrInvalidQuantity = shared.NewError(shared.CodeInvalidQuantity, "money: invalid quantity")
	// ErrInvalidFactor is returned for malformed multipliers, percentages and rates.
	ErrInvalidFactor = shared.NewError(shared.CodeInvalidFactor, "money: invalid factor")
)

// optional sign, digits, optional fractional digits. No exponents, no grouping.
var decimalPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// toInt64 converts an integral decimal to int64, reporting overflow.
func toInt64(d decimal.Decimal) (int64, bool) {
	b := d.BigInt()
	if !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

// ToCents parses value into minor units at the given scale.
func ToCents(value string, scale int) (int64, error) {
	if scale < 0 || scale > maxScale {
		return 0, fmt.Errorf("%w: unsupported scale %d", ErrInvalidMoneyFormat, scale)
	}
	d, ok := parseDecimal(value)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoneyFormat, value)
	}
	minor, ok := toInt64(d.Shift(int32(scale)).Round(0))
	if !ok {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidMoneyFormat, value)
	}
	return minor, nil
}

// ToCentsDefault parses value at DefaultScale.
func ToCentsDefault(value string) (int64, error) {
	return ToCents(value, DefaultScale)
}

// FromCents formats minor units as a decimal string with exactly scale fractional digits.
func FromCents(cents int64, scale int) string {
	if scale < 0 {
		scale = 0
	}
	return decimal.New(cents, -int32(scale)).StringFixed(int32(scale))
}

// AddCents sums minor-unit amounts.
func AddCents(values ...int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}

// ParseFactor interprets a multiplier. "20%" and the bare integer "20" both mean
// 0.20; a value with a fractional part such as "1.19" is used as is.
func ParseFactor(factor string) (decimal.Decimal, error) {
	f := strings.TrimSpace(factor)
	if strings.HasSuffix(f, "%") {
		d, ok := parseDecimal(strings.TrimSuffix(f, "%"))
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidFactor, factor)
		}
		return d.Shift(-2), nil
	}
	d, ok := parseDecimal(f)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidFactor, factor)
	}
	if !strings.Contains(f, ".") {
		return d.Shift(-2), nil
	}
	return d, nil
}

// ParseRate parses a percentage rate ("20", "7.7", "20%") into its fraction.
// Unlike ParseFactor a fractional rate is still a percentage.
func ParseRate(rate string) (decimal.Decimal, error) {
	r := strings.TrimSuffix(strings.TrimSpace(rate), "%")
	d, ok := parseDecimal(r)
	if !ok || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: rate %q", ErrInvalidFactor, rate)
	}
	return d.Shift(-2), nil
}

// NormalizeRate returns the canonical key for a percentage rate, e.g. "20.00" -> "20".
func NormalizeRate(rate string) (string, error) {
	frac, err := ParseRate(rate)
	if err != nil {
		return "", err
	}
	return frac.Shift(2).String(), nil
}

// MultiplyCents multiplies cents by factor (see ParseFactor) and rounds half away from zero.
func MultiplyCents(cents int64, factor string) (int64, error) {
	f, err := ParseFactor(factor)
	if err != nil {
		return 0, err
	}
	return mulRound(cents, f)
}

// MultiplyCentsPercent multiplies cents by an integer percentage.
func MultiplyCentsPercent(cents int64, percent int64) (int64, error) {
	return mulRound(cents, decimal.NewFromInt(percent).Shift(-2))
}

func mulRound(cents int64, f decimal.Decimal) (int64, error) {
	out, ok := toInt64(decimal.NewFromInt(cents).Mul(f).Round(0))
	if !ok {
		return 0, fmt.Errorf("%w: product overflows", ErrInvalidFactor)
	}
	return out, nil
}
