package documents

import (
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/money"
	"github.com/odyssey-erp/odyssey-books/internal/sequence"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// DocumentType enumerates the documents issued to customers.
type DocumentType string

const (
	TypeDeliveryNote DocumentType = "delivery_note"
	TypeInvoice      DocumentType = "invoice"
	TypeCreditNote   DocumentType = "credit_note"
)

// IsFiscal reports whether the type carries a legal sequential number.
func (t DocumentType) IsFiscal() bool {
	return t == TypeInvoice || t == TypeCreditNote
}

// SequenceKey names the counter that numbers documents of this type.
func (t DocumentType) SequenceKey() string {
	switch t {
	case TypeInvoice:
		return sequence.KeyInvoice
	case TypeCreditNote:
		return sequence.KeyCreditNote
	default:
		return sequence.KeyDeliveryNote
	}
}

// Status enumerates document lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPosted    Status = "posted"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// CanEdit reports whether header and items may still change.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// CanCancel reports whether cancellation is permitted.
func (s Status) CanCancel() bool {
	return s == StatusDraft || s == StatusPosted
}

// CanReprint reports whether the document may be printed again.
func (s Status) CanReprint() bool {
	return s == StatusPosted || s == StatusPaid
}

// Item is one priced line of a document.
type Item struct {
	ID              int64
	DocumentID      int64
	LineNo          int
	ProductID       *int64
	Description     string
	Quantity        string
	UnitPriceCents  int64
	DiscountPercent string
	DiscountCents   int64
	VATRate         string
	NetCents        int64
	VATCents        int64
	GrossCents      int64
}

// Document is a delivery note, invoice or credit note.
type Document struct {
	ID                int64
	Type              DocumentType
	Status            Status
	DocNumber         *string
	CustomerID        int64
	OrderID           *int64
	BillingAddressID  *int64
	ShippingAddressID *int64
	Currency          string
	DefaultVATRate    string
	NetCents          int64
	VATCents          int64
	GrossCents        int64
	VATSummary        map[string]money.Bucket
	IssueDate         *time.Time
	DueDate           *time.Time
	Notes             string
	PrintedCount      int
	LastPrintTemplate string
	LastPrintedAt     *time.Time
	LastPrintedBy     *int64
	PostedAt          *time.Time
	PostedBy          *int64
	PaidAt            *time.Time
	CancelledAt       *time.Time
	CancelReason      string
	CreatedBy         int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []Item
}

// IsCopy reports whether renderers must mark the document as a copy.
func (d Document) IsCopy() bool {
	return d.PrintedCount > 0
}

// ItemInput is a caller-supplied line. Totals are always computed server-side.
type ItemInput struct {
	ProductID       *int64 `validate:"omitempty,gt=0"`
	Description     string `validate:"max=500"`
	Quantity        string `validate:"required"`
	UnitPriceCents  int64  `validate:"gte=0"`
	DiscountPercent string
	DiscountCents   int64 `validate:"gte=0"`
	VATRate         string
}

// CreateDraftInput describes a new draft document.
type CreateDraftInput struct {
	Type              DocumentType `validate:"required,oneof=delivery_note invoice credit_note"`
	CustomerID        int64        `validate:"required,gt=0"`
	OrderID           *int64       `validate:"omitempty,gt=0"`
	BillingAddressID  *int64       `validate:"omitempty,gt=0"`
	ShippingAddressID *int64       `validate:"omitempty,gt=0"`
	Currency          string       `validate:"required,iso4217"`
	DefaultVATRate    string
	IssueDate         *time.Time
	DueDate           *time.Time
	Notes             string      `validate:"max=2000"`
	Items             []ItemInput `validate:"dive"`
	ActorID           int64
}

// UpdateDraftInput patches a draft. Nil fields are left unchanged; Items,
// when set, replaces every line.
type UpdateDraftInput struct {
	CustomerID        *int64  `validate:"omitempty,gt=0"`
	BillingAddressID  *int64  `validate:"omitempty,gt=0"`
	ShippingAddressID *int64  `validate:"omitempty,gt=0"`
	Currency          *string `validate:"omitempty,iso4217"`
	DefaultVATRate    *string
	IssueDate         *time.Time
	DueDate           *time.Time
	Notes             *string `validate:"omitempty,max=2000"`
	Items             *[]ItemInput
	ActorID           int64
}

// ReprintInput records a print of a finalised document.
type ReprintInput struct {
	Template string `validate:"required,max=100"`
	ActorID  int64
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = shared.NewError(shared.CodeNotFound, "document not found")
	// ErrImmutableDocument indicates a change to a document that left draft.
	ErrImmutableDocument = shared.NewError(shared.CodeImmutableDocument, "document is no longer a draft")
	// ErrInvalidItems indicates posting without items.
	ErrInvalidItems = shared.NewError(shared.CodeInvalidItems, "document has no items")
	// ErrInvalidTransition indicates a status change outside the lifecycle.
	ErrInvalidTransition = shared.NewError(shared.CodeInvalidTransition, "invalid document status transition")
)
