package masterdata

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionedUpdate(t *testing.T) {
	var set Assignments
	set.Set("name", "Acme")
	set.Set("is_active", false)
	require.Equal(t, 2, set.Len())

	query, args := set.VersionedUpdate("customers", 7, 3, "row_version")
	assert.Equal(t, "UPDATE customers SET name = $1, is_active = $2, row_version = row_version + 1, updated_at = NOW() WHERE id = $3 AND row_version = $4 RETURNING row_version", query)
	assert.Equal(t, []any{"Acme", false, int64(7), int64(3)}, args)
}

func TestListFiltersNormalize(t *testing.T) {
	f := ListFilters{Page: 0, Limit: 10000, SortDir: "sideways"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxLimit, f.Limit)
	assert.Equal(t, SortAsc, f.SortDir)
	assert.Equal(t, 0, f.Offset())

	f = ListFilters{Page: 3, Limit: 20}.Normalize()
	assert.Equal(t, 40, f.Offset())
	assert.Equal(t, DefaultLimit, ListFilters{}.Normalize().Limit)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
}
