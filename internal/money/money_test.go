package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

func TestToCents(t *testing.T) {
	cases := []struct {
		in    string
		scale int
		want  int64
	}{
		{"12.34", 2, 1234},
		{"12.345", 2, 1235},
		{"-12.345", 2, -1235},
		{"12.344", 2, 1234},
		{"0.005", 2, 1},
		{"-0.005", 2, -1},
		{"100", 2, 10000},
		{"+1.5", 2, 150},
		{" 7.1 ", 2, 710},
		{"1.2345", 3, 1235},
		{"42", 0, 42},
	}
	for _, tc := range cases {
		got, err := ToCents(tc.in, tc.scale)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestToCentsRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "1e5", "1,000.00", "12.", ".5", "--1", "1.2.3", "NaN", "0x10"} {
		_, err := ToCentsDefault(in)
		require.ErrorIs(t, err, ErrInvalidMoneyFormat, in)
		assert.Equal(t, shared.CodeInvalidMoneyFormat, shared.CodeOf(err), in)
	}
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "12.34", FromCents(1234, 2))
	assert.Equal(t, "-0.05", FromCents(-5, 2))
	assert.Equal(t, "0.00", FromCents(0, 2))
	assert.Equal(t, "12.30", FromCents(1230, 2))
	assert.Equal(t, "100", FromCents(100, 0))
	assert.Equal(t, "1.005", FromCents(1005, 3))
}

func TestToCentsRoundTrip(t *testing.T) {
	normalized := map[string]string{
		"0.1":     "0.10",
		"+3":      "3.00",
		"-0.50":   "-0.50",
		"-0":      "0.00",
		"19.99":   "19.99",
		"1000000": "1000000.00",
		"007.25":  "7.25",
	}
	for in, want := range normalized {
		cents, err := ToCentsDefault(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, FromCents(cents, DefaultScale), in)
	}
}

func TestAddCentsDoesNotDrift(t *testing.T) {
	dime, err := ToCentsDefault("0.10")
	require.NoError(t, err)
	values := make([]int64, 10)
	for i := range values {
		values[i] = dime
	}
	assert.Equal(t, "1.00", FromCents(AddCents(values...), 2))

	a, _ := ToCentsDefault("0.1")
	b, _ := ToCentsDefault("0.2")
	assert.Equal(t, int64(30), AddCents(a, b))
}

func roundHalfAway(num, den int64) int64 {
	neg := num < 0
	if neg {
		num = -num
	}
	q, r := num/den, num%den
	if 2*r >= den {
		q++
	}
	if neg {
		return -q
	}
	return q
}

func TestMultiplyCentsPercentForms(t *testing.T) {
	for _, cents := range []int64{-1234, -5, -3, 0, 1, 2, 3, 5, 1234, 99999, 123456789} {
		want := roundHalfAway(cents*20, 100)

		pct, err := MultiplyCents(cents, "20%")
		require.NoError(t, err)
		bare, err := MultiplyCents(cents, "20")
		require.NoError(t, err)
		typed, err := MultiplyCentsPercent(cents, 20)
		require.NoError(t, err)

		assert.Equal(t, want, pct, "cents=%d", cents)
		assert.Equal(t, want, bare, "cents=%d", cents)
		assert.Equal(t, want, typed, "cents=%d", cents)
	}
}

func TestMultiplyCentsDecimalMultiplier(t *testing.T) {
	got, err := MultiplyCents(10000, "1.19")
	require.NoError(t, err)
	assert.Equal(t, int64(11900), got)

	got, err = MultiplyCents(1000, "7.5%")
	require.NoError(t, err)
	assert.Equal(t, int64(75), got)

	got, err = MultiplyCents(5, "10%")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = MultiplyCents(-5, "10%")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), got)

	for _, bad := range []string{"", "abc%", "1e2", "%", "1.1.1"} {
		_, err := MultiplyCents(100, bad)
		require.ErrorIs(t, err, ErrInvalidFactor, bad)
	}
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("2")
	require.NoError(t, err)
	assert.Equal(t, Quantity{Units: 2, Scale: 0}, q)

	q, err = ParseQuantity("1.50")
	require.NoError(t, err)
	assert.Equal(t, Quantity{Units: 150, Scale: 2}, q)
	assert.Equal(t, "1.50", q.String())

	q, err = ParseQuantity("0.1234567")
	require.NoError(t, err)
	assert.Equal(t, Quantity{Units: 123457, Scale: 6}, q)

	for _, bad := range []string{"0", "0.000", "-1", "1e3", "", "one"} {
		_, err := ParseQuantity(bad)
		require.ErrorIs(t, err, ErrInvalidQuantity, bad)
	}
}

func TestParseQuantityFitsStorage(t *testing.T) {
	q, err := ParseQuantity("999999999999.999999")
	require.NoError(t, err)
	assert.Equal(t, "999999999999.999999", q.String())

	for _, bad := range []string{"1000000000000", "999999999999.9999999", "123456789012345"} {
		_, err := ParseQuantity(bad)
		require.ErrorIs(t, err, ErrInvalidQuantity, bad)
		assert.Equal(t, shared.CodeInvalidQuantity, shared.CodeOf(err), bad)
	}
}

func TestNormalizeRate(t *testing.T) {
	for in, want := range map[string]string{"20": "20", "20.00": "20", "7.70": "7.7", "19%": "19", "0": "0"} {
		got, err := NormalizeRate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := NormalizeRate("-5")
	require.ErrorIs(t, err, ErrInvalidFactor)
}
