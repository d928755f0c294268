package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type header struct {
	Currency string `validate:"required,iso4217"`
	Name     string `validate:"required,max=5"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(header{Currency: "EUR", Name: "ok"}))
	require.NoError(t, ValidateStruct(header{Currency: "chf", Name: "ok"}))

	err := ValidateStruct(header{Currency: "EURO", Name: "toolong"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "header.Currency failed iso4217")
	assert.Contains(t, err.Error(), "header.Name failed max")
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", got)

	_, err = NormalizeCurrency("XYZ1")
	assert.Equal(t, CodeInvalidInput, CodeOf(err))
}
