package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

func TestViolationPredicates(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	fk := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(unique))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestMissingReferenceMapsToNotFound(t *testing.T) {
	err := MissingReference(fmt.Errorf("insert document: %w", &pgconn.PgError{
		Code:           "23503",
		ConstraintName: "documents_customer_id_fkey",
		Detail:         `Key (customer_id)=(99) is not present in table "customers".`,
	}))
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, shared.CodeNotFound, shared.CodeOf(err))
	assert.Contains(t, err.Error(), "customer_id")

	err = MissingReference(&pgconn.PgError{Code: "23503", ConstraintName: "order_lines_product_id_fkey"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Contains(t, err.Error(), "order_lines_product_id_fkey")
}

func TestMissingReferencePassesOtherErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, MissingReference(boom))
	assert.NoError(t, MissingReference(nil))

	unique := &pgconn.PgError{Code: "23505"}
	assert.Equal(t, error(unique), MissingReference(unique))
}
