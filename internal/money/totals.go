package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Line is the pricing input of one document or order line.
type Line struct {
	Quantity        string
	UnitPriceCents  int64
	DiscountPercent string
	DiscountCents   int64
	// VATRate is a percentage; empty falls back to LineOptions.DefaultVATRate.
	VATRate string
}

// LineOptions carries document-level defaults.
type LineOptions struct {
	DefaultVATRate string
}

// LineTotals is the computed result for one line.
type LineTotals struct {
	Quantity      Quantity
	BaseCents     int64
	DiscountCents int64
	NetCents      int64
	VATRate       string
	VATCents      int64
	GrossCents    int64
}

// Bucket holds totals for a single VAT rate.
type Bucket struct {
	NetCents   int64 `json:"net"`
	VATCents   int64 `json:"vat"`
	GrossCents int64 `json:"gross"`
}

// Summary holds document totals and their per-rate breakdown.
type Summary struct {
	NetCents   int64
	VATCents   int64
	GrossCents int64
	ByRate     map[string]Bucket
}

// ComputeLineTotals prices a line. The percent discount is taken on the
// pre-discount net, the fixed discount follows, and VAT is applied to the
// discounted net. Net never drops below zero.
func ComputeLineTotals(line Line, opts LineOptions) (LineTotals, error) {
	qty, err := ParseQuantity(line.Quantity)
	if err != nil {
		return LineTotals{}, err
	}
	if line.UnitPriceCents < 0 {
		return LineTotals{}, fmt.Errorf("%w: negative unit price", ErrInvalidMoneyFormat)
	}
	if line.DiscountCents < 0 {
		return LineTotals{}, fmt.Errorf("%w: negative discount", ErrInvalidMoneyFormat)
	}

	base, err := qty.Mul(line.UnitPriceCents)
	if err != nil {
		return LineTotals{}, err
	}

	var percentDiscount int64
	if strings.TrimSpace(line.DiscountPercent) != "" {
		pct, err := ParseRate(line.DiscountPercent)
		if err != nil {
			return LineTotals{}, err
		}
		if pct.GreaterThan(one) {
			return LineTotals{}, fmt.Errorf("%w: discount %q exceeds 100%%", ErrInvalidFactor, line.DiscountPercent)
		}
		percentDiscount, err = mulRound(base, pct)
		if err != nil {
			return LineTotals{}, err
		}
	}

	discount := percentDiscount + line.DiscountCents
	if discount > base {
		discount = base
	}
	net := base - discount

	rate := strings.TrimSpace(line.VATRate)
	if rate == "" {
		rate = strings.TrimSpace(opts.DefaultVATRate)
	}
	if rate == "" {
		rate = "0"
	}
	rateKey, err := NormalizeRate(rate)
	if err != nil {
		return LineTotals{}, err
	}
	frac, _ := ParseRate(rateKey)
	vat, err := mulRound(net, frac)
	if err != nil {
		return LineTotals{}, err
	}

	return LineTotals{
		Quantity:      qty,
		BaseCents:     base,
		DiscountCents: discount,
		NetCents:      net,
		VATRate:       rateKey,
		VATCents:      vat,
		GrossCents:    net + vat,
	}, nil
}

// ComputeLines prices every line with the same options.
func ComputeLines(lines []Line, opts LineOptions) ([]LineTotals, error) {
	out := make([]LineTotals, 0, len(lines))
	for i, line := range lines {
		totals, err := ComputeLineTotals(line, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, totals)
	}
	return out, nil
}

// SummariseDocumentTotals sums line totals and buckets them by VAT rate.
func SummariseDocumentTotals(lines []LineTotals) Summary {
	summary := Summary{ByRate: make(map[string]Bucket, len(lines))}
	for _, line := range lines {
		summary.NetCents += line.NetCents
		summary.VATCents += line.VATCents
		summary.GrossCents += line.GrossCents

		bucket := summary.ByRate[line.VATRate]
		bucket.NetCents += line.NetCents
		bucket.VATCents += line.VATCents
		bucket.GrossCents += line.GrossCents
		summary.ByRate[line.VATRate] = bucket
	}
	return summary
}
