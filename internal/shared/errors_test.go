package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesByCode(t *testing.T) {
	specific := NewError(CodeNotFound, "customer 4 not found")
	wrapped := fmt.Errorf("load: %w", specific)

	require.ErrorIs(t, wrapped, ErrNotFound)
	assert.False(t, errors.Is(wrapped, ErrConcurrentUpdate))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, "load: customer 4 not found", wrapped.Error())
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, "NEGATIVE_STOCK", NewError(CodeNegativeStock, "").Error())
}
