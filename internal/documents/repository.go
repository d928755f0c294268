package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/money"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/sequence"
)

// Repository provides PostgreSQL backed persistence for documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc Document) (int64, error)
	// LockDocument loads the document with its items and holds its row
	// lock until the transaction ends.
	LockDocument(ctx context.Context, id int64) (Document, error)
	SaveDocument(ctx context.Context, doc Document) error
	ReplaceItems(ctx context.Context, documentID int64, items []Item) error
	// Sequences exposes the sequence table inside the same transaction.
	Sequences() sequence.TxStore
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads a document with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, selectDocument+` WHERE id = $1`, id))
	if err != nil {
		return Document{}, err
	}
	doc.Items, err = loadItems(ctx, r.pool, id)
	return doc, err
}

const selectDocument = `SELECT id, doc_type, status, doc_number, customer_id, order_id, billing_address_id,
    shipping_address_id, currency, default_vat_rate, net_cents, vat_cents, gross_cents, vat_summary,
    issue_date, due_date, COALESCE(notes, ''), printed_count, COALESCE(last_print_template, ''),
    last_printed_at, last_printed_by, posted_at, posted_by, paid_at, cancelled_at,
    COALESCE(cancel_reason, ''), COALESCE(created_by, 0), created_at, updated_at
FROM documents`

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc     Document
		docType string
		status  string
		summary []byte
	)
	err := row.Scan(&doc.ID, &docType, &status, &doc.DocNumber, &doc.CustomerID, &doc.OrderID,
		&doc.BillingAddressID, &doc.ShippingAddressID, &doc.Currency, &doc.DefaultVATRate,
		&doc.NetCents, &doc.VATCents, &doc.GrossCents, &summary, &doc.IssueDate, &doc.DueDate,
		&doc.Notes, &doc.PrintedCount, &doc.LastPrintTemplate, &doc.LastPrintedAt, &doc.LastPrintedBy,
		&doc.PostedAt, &doc.PostedBy, &doc.PaidAt, &doc.CancelledAt, &doc.CancelReason,
		&doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.Type, doc.Status = DocumentType(docType), Status(status)
	doc.VATSummary = map[string]money.Bucket{}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &doc.VATSummary); err != nil {
			return Document{}, fmt.Errorf("documents: decode vat summary: %w", err)
		}
	}
	return doc, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, documentID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, document_id, line_no, product_id, description, quantity::text,
    unit_price_cents, discount_percent, discount_cents, vat_rate, net_cents, vat_cents, gross_cents
FROM document_items WHERE document_id = $1 ORDER BY line_no`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.DocumentID, &it.LineNo, &it.ProductID, &it.Description, &it.Quantity,
			&it.UnitPriceCents, &it.DiscountPercent, &it.DiscountCents, &it.VATRate,
			&it.NetCents, &it.VATCents, &it.GrossCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *txRepo) Sequences() sequence.TxStore {
	return sequence.NewTxStore(r.tx)
}

func (r *txRepo) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	summary, err := json.Marshal(doc.VATSummary)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.tx.QueryRow(ctx, `INSERT INTO documents
    (doc_type, status, doc_number, customer_id, order_id, billing_address_id, shipping_address_id,
     currency, default_vat_rate, net_cents, vat_cents, gross_cents, vat_summary, issue_date, due_date,
     notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
RETURNING id`,
		string(doc.Type), string(doc.Status), doc.DocNumber, doc.CustomerID, doc.OrderID,
		doc.BillingAddressID, doc.ShippingAddressID, doc.Currency, doc.DefaultVATRate,
		doc.NetCents, doc.VATCents, doc.GrossCents, summary, doc.IssueDate, doc.DueDate,
		doc.Notes, doc.CreatedBy, doc.CreatedAt,
	).Scan(&id)
	return id, db.MissingReference(err)
}

func (r *txRepo) LockDocument(ctx context.Context, id int64) (Document, error) {
	doc, err := scanDocument(r.tx.QueryRow(ctx, selectDocument+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Document{}, err
	}
	doc.Items, err = loadItems(ctx, r.tx, id)
	return doc, err
}

func (r *txRepo) SaveDocument(ctx context.Context, doc Document) error {
	summary, err := json.Marshal(doc.VATSummary)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE documents SET
    status = $2, doc_number = $3, customer_id = $4, billing_address_id = $5, shipping_address_id = $6,
    currency = $7, default_vat_rate = $8, net_cents = $9, vat_cents = $10, gross_cents = $11,
    vat_summary = $12, issue_date = $13, due_date = $14, notes = $15, printed_count = $16,
    last_print_template = NULLIF($17, ''), last_printed_at = $18, last_printed_by = $19,
    posted_at = $20, posted_by = $21, paid_at = $22, cancelled_at = $23, cancel_reason = NULLIF($24, ''),
    updated_at = $25
WHERE id = $1`,
		doc.ID, string(doc.Status), doc.DocNumber, doc.CustomerID, doc.BillingAddressID, doc.ShippingAddressID,
		doc.Currency, doc.DefaultVATRate, doc.NetCents, doc.VATCents, doc.GrossCents,
		summary, doc.IssueDate, doc.DueDate, doc.Notes, doc.PrintedCount,
		doc.LastPrintTemplate, doc.LastPrintedAt, doc.LastPrintedBy,
		doc.PostedAt, doc.PostedBy, doc.PaidAt, doc.CancelledAt, doc.CancelReason,
		doc.UpdatedAt,
	)
	if err != nil {
		return db.MissingReference(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) ReplaceItems(ctx context.Context, documentID int64, items []Item) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM document_items WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO document_items
    (document_id, line_no, product_id, description, quantity, unit_price_cents, discount_percent,
     discount_cents, vat_rate, net_cents, vat_cents, gross_cents)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12)`,
			documentID, it.LineNo, it.ProductID, it.Description, it.Quantity, it.UnitPriceCents,
			it.DiscountPercent, it.DiscountCents, it.VATRate, it.NetCents, it.VATCents, it.GrossCents)
	}
	if batch.Len() == 0 {
		return nil
	}
	return db.MissingReference(r.tx.SendBatch(ctx, batch).Close())
}
