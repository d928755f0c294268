package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantityScale bounds the fractional digits kept for a quantity.
const MaxQuantityScale = 6

// MaxQuantityDigits bounds the integer digits of a quantity, matching the
// NUMERIC(18,6) columns it is stored in.
const MaxQuantityDigits = 12

var quantityLimit = decimal.New(1, MaxQuantityDigits)

// Quantity is a fixed-point number: Units / 10^Scale.
type Quantity struct {
	Units int64
	Scale int32
}

// ParseQuantity parses s into a fixed-point quantity whose scale follows the
// number of fractional digits written. Digits past MaxQuantityScale are rounded
// half away from zero. Only positive quantities below 10^MaxQuantityDigits are accepted.
func ParseQuantity(s string) (Quantity, error) {
	d, ok := parseDecimal(s)
	if !ok {
		return Quantity{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	trimmed := strings.TrimSpace(s)
	scale := int32(0)
	if dot := strings.IndexByte(trimmed, '.'); dot >= 0 {
		scale = int32(len(trimmed) - dot - 1)
	}
	if scale > MaxQuantityScale {
		scale = MaxQuantityScale
	}
	units, ok := toInt64(d.Shift(scale).Round(0))
	if !ok {
		return Quantity{}, fmt.Errorf("%w: %q out of range", ErrInvalidQuantity, s)
	}
	if units <= 0 {
		return Quantity{}, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidQuantity, s)
	}
	q := Quantity{Units: units, Scale: scale}
	if !q.Decimal().LessThan(quantityLimit) {
		return Quantity{}, fmt.Errorf("%w: %q exceeds %d integer digits", ErrInvalidQuantity, s, MaxQuantityDigits)
	}
	return q, nil
}

// Decimal returns the exact decimal value of q.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(q.Units, -q.Scale)
}

// String formats q keeping its scale.
func (q Quantity) String() string {
	return q.Decimal().StringFixed(q.Scale)
}

// IsZero reports whether q holds no units.
func (q Quantity) IsZero() bool {
	return q.Units == 0
}

// Mul multiplies cents by q and rounds half away from zero.
func (q Quantity) Mul(cents int64) (int64, error) {
	return mulRound(cents, q.Decimal())
}
