package money

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLineTotalsWorkedExample(t *testing.T) {
	price, err := ToCentsDefault("100.00")
	require.NoError(t, err)

	totals, err := ComputeLineTotals(Line{
		Quantity:        "2",
		UnitPriceCents:  price,
		DiscountPercent: "10",
		VATRate:         "20",
	}, LineOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(20000), totals.BaseCents)
	assert.Equal(t, int64(2000), totals.DiscountCents)
	assert.Equal(t, int64(18000), totals.NetCents)
	assert.Equal(t, int64(3600), totals.VATCents)
	assert.Equal(t, int64(21600), totals.GrossCents)
	assert.Equal(t, "20", totals.VATRate)
}

func TestComputeLineTotalsFallsBackToDocumentRate(t *testing.T) {
	totals, err := ComputeLineTotals(Line{Quantity: "1", UnitPriceCents: 10000}, LineOptions{DefaultVATRate: "19"})
	require.NoError(t, err)
	assert.Equal(t, "19", totals.VATRate)
	assert.Equal(t, int64(1900), totals.VATCents)

	totals, err = ComputeLineTotals(Line{Quantity: "1", UnitPriceCents: 10000}, LineOptions{})
	require.NoError(t, err)
	assert.Equal(t, "0", totals.VATRate)
	assert.Equal(t, int64(0), totals.VATCents)
}

func TestComputeLineTotalsPercentThenFixedDiscount(t *testing.T) {
	totals, err := ComputeLineTotals(Line{
		Quantity:        "3",
		UnitPriceCents:  999,
		DiscountPercent: "10",
		DiscountCents:   97,
		VATRate:         "7.7",
	}, LineOptions{})
	require.NoError(t, err)

	// 2997 base, 299.7 -> 300 percent discount, 97 fixed.
	assert.Equal(t, int64(2997), totals.BaseCents)
	assert.Equal(t, int64(397), totals.DiscountCents)
	assert.Equal(t, int64(2600), totals.NetCents)
	assert.Equal(t, int64(200), totals.VATCents)
	assert.Equal(t, int64(2800), totals.GrossCents)
}

func TestComputeLineTotalsFractionalQuantity(t *testing.T) {
	totals, err := ComputeLineTotals(Line{Quantity: "0.333", UnitPriceCents: 300}, LineOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), totals.NetCents)

	totals, err = ComputeLineTotals(Line{Quantity: "0.1", UnitPriceCents: 30, VATRate: "20"}, LineOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.NetCents)
	assert.Equal(t, int64(1), totals.VATCents)
}

func TestComputeLineTotalsClampsNetAtZero(t *testing.T) {
	totals, err := ComputeLineTotals(Line{Quantity: "1", UnitPriceCents: 500, DiscountCents: 900, VATRate: "20"}, LineOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.NetCents)
	assert.Equal(t, int64(500), totals.DiscountCents)
	assert.Equal(t, int64(0), totals.GrossCents)
}

func TestComputeLineTotalsRejectsBadInput(t *testing.T) {
	_, err := ComputeLineTotals(Line{Quantity: "abc", UnitPriceCents: 100}, LineOptions{})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ComputeLineTotals(Line{Quantity: "1", UnitPriceCents: 100, DiscountPercent: "150"}, LineOptions{})
	require.ErrorIs(t, err, ErrInvalidFactor)

	_, err = ComputeLineTotals(Line{Quantity: "1", UnitPriceCents: 100, VATRate: "twenty"}, LineOptions{})
	require.ErrorIs(t, err, ErrInvalidFactor)

	_, err = ComputeLineTotals(Line{Quantity: "1", UnitPriceCents: -100}, LineOptions{})
	require.ErrorIs(t, err, ErrInvalidMoneyFormat)
}

func TestSummariseDocumentTotalsBucketsByRate(t *testing.T) {
	lines, err := ComputeLines([]Line{
		{Quantity: "2", UnitPriceCents: 10000, DiscountPercent: "10", VATRate: "20"},
		{Quantity: "1", UnitPriceCents: 5000, VATRate: "20.00"},
		{Quantity: "4", UnitPriceCents: 250, VATRate: "7"},
	}, LineOptions{})
	require.NoError(t, err)

	summary := SummariseDocumentTotals(lines)
	assert.Equal(t, int64(24000), summary.NetCents)
	assert.Equal(t, int64(28670), summary.GrossCents)
	assert.Equal(t, int64(4670), summary.VATCents)
	assert.Equal(t, summary.NetCents+summary.VATCents, summary.GrossCents)
	require.Len(t, summary.ByRate, 2)
	assert.Equal(t, Bucket{NetCents: 23000, VATCents: 4600, GrossCents: 27600}, summary.ByRate["20"])
	assert.Equal(t, Bucket{NetCents: 1000, VATCents: 70, GrossCents: 1070}, summary.ByRate["7"])
}

func TestSummariseDocumentTotalsIsOrderIndependent(t *testing.T) {
	inputs := []Line{
		{Quantity: "3", UnitPriceCents: 333, VATRate: "20"},
		{Quantity: "1.5", UnitPriceCents: 1999, DiscountPercent: "5", VATRate: "7.7"},
		{Quantity: "10", UnitPriceCents: 1, VATRate: "0"},
		{Quantity: "0.25", UnitPriceCents: 40000, DiscountCents: 50, VATRate: "20"},
		{Quantity: "7", UnitPriceCents: 1250, VATRate: "2.5"},
	}
	lines, err := ComputeLines(inputs, LineOptions{})
	require.NoError(t, err)
	want := SummariseDocumentTotals(lines)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]LineTotals(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, SummariseDocumentTotals(shuffled))
	}
}
