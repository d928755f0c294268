package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Assignments collects the SET clause of a partial update. Only columns the
// caller set are written.
type Assignments struct {
	cols []string
	args []any
}

// Set adds column = value.
func (a *Assignments) Set(column string, value any) {
	a.args = append(a.args, value)
	a.cols = append(a.cols, column+" = $"+strconv.Itoa(len(a.args)))
}

// Len returns the number of assigned columns.
func (a *Assignments) Len() int {
	return len(a.cols)
}

// VersionedUpdate renders an UPDATE conditioned on id and row_version that
// bumps row_version and returns the given columns.
func (a *Assignments) VersionedUpdate(table string, id, version int64, returning string) (string, []any) {
	args := append([]any(nil), a.args...)
	args = append(args, id, version)
	idArg := "$" + strconv.Itoa(len(args)-1)
	versionArg := "$" + strconv.Itoa(len(args))

	sets := append([]string(nil), a.cols...)
	sets = append(sets, "row_version = row_version + 1", "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s AND row_version = %s RETURNING %s",
		table, strings.Join(sets, ", "), idArg, versionArg, returning)
	return query, args
}

// NullIfEmpty maps "" to SQL NULL for optional text columns.
func NullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ClassifyMiss explains a versioned update that matched no row: NOT_FOUND when
// the id does not exist, CONCURRENT_UPDATE when its version moved on.
func ClassifyMiss(ctx context.Context, q Querier, table string, id int64) error {
	entity := strings.TrimSuffix(table, "s")
	var current int64
	err := q.QueryRow(ctx, "SELECT row_version FROM "+table+" WHERE id = $1", id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", shared.ErrNotFound, entity, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s %d is at version %d", shared.ErrConcurrentUpdate, entity, id, current)
}
