package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// TxStore is the sequence table bound to one open transaction.
type TxStore interface {
	// LockOrCreate inserts def when key is absent and returns the row locked
	// for the rest of the transaction.
	LockOrCreate(ctx context.Context, def Sequence) (Sequence, error)
	Save(ctx context.Context, seq Sequence) error
	Configure(ctx context.Context, seq Sequence) (Sequence, error)
}

// Repository persists sequences in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn against a TxStore in a new transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// Get loads a sequence without locking it.
func (r *Repository) Get(ctx context.Context, key string) (Sequence, error) {
	row := r.pool.QueryRow(ctx, selectSequence+` WHERE key = $1`, key)
	seq, err := scanSequence(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sequence{}, fmt.Errorf("%w: sequence %q", shared.ErrNotFound, key)
	}
	return seq, err
}

// List returns all sequences ordered by key.
func (r *Repository) List(ctx context.Context) ([]Sequence, error) {
	rows, err := r.pool.Query(ctx, selectSequence+` ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sequence
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

type txStore struct {
	tx pgx.Tx
}

// NewTxStore binds the sequence table to tx so that reservations commit or
// roll back with the caller's own writes.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

const selectSequence = `SELECT key, prefix, suffix, pad_length, current_year, last_number, reset_annually, updated_at FROM sequences`

func (s *txStore) LockOrCreate(ctx context.Context, def Sequence) (Sequence, error) {
	_, err := s.tx.Exec(ctx, `INSERT INTO sequences (key, prefix, suffix, pad_length, current_year, last_number, reset_annually)
VALUES ($1, $2, $3, $4, $5, 0, $6)
ON CONFLICT (key) DO NOTHING`, def.Key, def.Prefix, def.Suffix, def.PadLength, def.CurrentYear, def.ResetAnnually)
	if err != nil {
		return Sequence{}, err
	}
	return scanSequence(s.tx.QueryRow(ctx, selectSequence+` WHERE key = $1 FOR UPDATE`, def.Key))
}

func (s *txStore) Save(ctx context.Context, seq Sequence) error {
	tag, err := s.tx.Exec(ctx, `UPDATE sequences SET current_year = $2, last_number = $3, updated_at = NOW() WHERE key = $1`,
		seq.Key, seq.CurrentYear, seq.LastNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s *txStore) Configure(ctx context.Context, seq Sequence) (Sequence, error) {
	row := s.tx.QueryRow(ctx, `INSERT INTO sequences (key, prefix, suffix, pad_length, current_year, last_number, reset_annually)
VALUES ($1, $2, $3, $4, $5, 0, $6)
ON CONFLICT (key) DO UPDATE SET prefix = EXCLUDED.prefix, suffix = EXCLUDED.suffix,
    pad_length = EXCLUDED.pad_length, reset_annually = EXCLUDED.reset_annually, updated_at = NOW()
RETURNING key, prefix, suffix, pad_length, current_year, last_number, reset_annually, updated_at`,
		seq.Key, seq.Prefix, seq.Suffix, seq.PadLength, seq.CurrentYear, seq.ResetAnnually)
	return scanSequence(row)
}

func scanSequence(row pgx.Row) (Sequence, error) {
	var seq Sequence
	err := row.Scan(&seq.Key, &seq.Prefix, &seq.Suffix, &seq.PadLength, &seq.CurrentYear,
		&seq.LastNumber, &seq.ResetAnnually, &seq.UpdatedAt)
	return seq, err
}
