package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/money"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/sequence"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Document, error)
}

// NumberAllocator reserves document numbers inside an open transaction.
type NumberAllocator interface {
	ReserveNextNumber(ctx context.Context, store sequence.TxStore, key string, now time.Time) (sequence.Reservation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the document lifecycle.
type Service struct {
	repo    RepositoryPort
	numbers NumberAllocator
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, numbers NumberAllocator, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		numbers: numbers,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a document with its items.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// CreateDraft stores a new draft. Delivery notes take their number now;
// fiscal documents are numbered when posted.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (Document, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Document{}, err
	}
	currency, err := shared.NormalizeCurrency(input.Currency)
	if err != nil {
		return Document{}, err
	}
	rate, err := normalizeDefaultRate(input.DefaultVATRate)
	if err != nil {
		return Document{}, err
	}

	now := s.now()
	doc := Document{
		Type:              input.Type,
		Status:            StatusDraft,
		CustomerID:        input.CustomerID,
		OrderID:           input.OrderID,
		BillingAddressID:  input.BillingAddressID,
		ShippingAddressID: input.ShippingAddressID,
		Currency:          currency,
		DefaultVATRate:    rate,
		IssueDate:         input.IssueDate,
		DueDate:           input.DueDate,
		Notes:             strings.TrimSpace(input.Notes),
		CreatedBy:         input.ActorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := applyItems(&doc, input.Items); err != nil {
		return Document{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if doc.Type == TypeDeliveryNote {
			res, err := s.numbers.ReserveNextNumber(ctx, tx.Sequences(), doc.Type.SequenceKey(), now)
			if err != nil {
				return err
			}
			doc.DocNumber = &res.Formatted
		}
		id, err := tx.InsertDocument(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = id
		for i := range doc.Items {
			doc.Items[i].DocumentID = id
		}
		return tx.ReplaceItems(ctx, id, doc.Items)
	})
	if err != nil {
		return Document{}, err
	}
	s.record(ctx, input.ActorID, "document:create", doc, nil)
	return doc, nil
}

// UpdateDraft applies patch to a draft document.
func (s *Service) UpdateDraft(ctx context.Context, id int64, patch UpdateDraftInput) (Document, error) {
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanEdit() {
			return fmt.Errorf("%w: %s is %s", ErrImmutableDocument, documentRef(doc), doc.Status)
		}
		if err := applyPatch(&doc, patch); err != nil {
			return err
		}
		doc.UpdatedAt = s.now()
		if err := tx.SaveDocument(ctx, doc); err != nil {
			return err
		}
		if patch.Items != nil {
			return tx.ReplaceItems(ctx, doc.ID, doc.Items)
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.record(ctx, patch.ActorID, "document:update", doc, nil)
	return doc, nil
}

// Post finalises a draft: totals are recomputed from the stored items and
// fiscal documents receive their legal number in the same transaction.
func (s *Service) Post(ctx context.Context, id, actorID int64) (Document, error) {
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrImmutableDocument, documentRef(doc), doc.Status)
		}
		if len(doc.Items) == 0 {
			return fmt.Errorf("%w: %s", ErrInvalidItems, documentRef(doc))
		}
		if err := recompute(&doc); err != nil {
			return err
		}

		now := s.now()
		if doc.DocNumber == nil {
			res, err := s.numbers.ReserveNextNumber(ctx, tx.Sequences(), doc.Type.SequenceKey(), now)
			if err != nil {
				return err
			}
			doc.DocNumber = &res.Formatted
		}
		if doc.IssueDate == nil {
			issued := now.Truncate(24 * time.Hour)
			doc.IssueDate = &issued
		}
		doc.Status = StatusPosted
		doc.PostedAt = &now
		doc.PostedBy = optionalActor(actorID)
		doc.UpdatedAt = now
		if err := tx.SaveDocument(ctx, doc); err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, doc.ID, doc.Items)
	})
	if err != nil {
		return Document{}, err
	}
	s.metrics.DocumentPosted(string(doc.Type))
	s.record(ctx, actorID, "document:post", doc, map[string]any{
		"net":   doc.NetCents,
		"vat":   doc.VATCents,
		"gross": doc.GrossCents,
	})
	return doc, nil
}

// MarkPaid moves a posted document to paid. Paying a paid document is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id, actorID int64) (Document, error) {
	changed := false
	doc, err := s.transition(ctx, id, func(doc *Document, now time.Time) error {
		switch doc.Status {
		case StatusPaid:
			return nil
		case StatusPosted:
			doc.Status = StatusPaid
			doc.PaidAt = &now
			changed = true
			return nil
		default:
			return fmt.Errorf("%w: cannot pay %s document", ErrInvalidTransition, doc.Status)
		}
	})
	if err != nil {
		return Document{}, err
	}
	if changed {
		s.record(ctx, actorID, "document:paid", doc, nil)
	}
	return doc, nil
}

// Cancel cancels a draft or posted document.
func (s *Service) Cancel(ctx context.Context, id, actorID int64, reason string) (Document, error) {
	doc, err := s.transition(ctx, id, func(doc *Document, now time.Time) error {
		if !doc.Status.CanCancel() {
			return fmt.Errorf("%w: cannot cancel %s document", ErrInvalidTransition, doc.Status)
		}
		doc.Status = StatusCancelled
		doc.CancelledAt = &now
		doc.CancelReason = strings.TrimSpace(reason)
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.record(ctx, actorID, "document:cancel", doc, map[string]any{"reason": doc.CancelReason})
	return doc, nil
}

// RegisterReprint counts a print of a posted or paid document. Every print
// after the first renders as a copy.
func (s *Service) RegisterReprint(ctx context.Context, id int64, input ReprintInput) (Document, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Document{}, err
	}
	doc, err := s.transition(ctx, id, func(doc *Document, now time.Time) error {
		if !doc.Status.CanReprint() {
			return fmt.Errorf("%w: cannot print %s document", ErrInvalidTransition, doc.Status)
		}
		doc.PrintedCount++
		doc.LastPrintTemplate = strings.TrimSpace(input.Template)
		doc.LastPrintedAt = &now
		doc.LastPrintedBy = optionalActor(input.ActorID)
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.record(ctx, input.ActorID, "document:print", doc, map[string]any{
		"printed_count": doc.PrintedCount,
		"template":      doc.LastPrintTemplate,
	})
	return doc, nil
}

func (s *Service) transition(ctx context.Context, id int64, apply func(*Document, time.Time) error) (Document, error) {
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		before := doc.Status
		printed := doc.PrintedCount
		now := s.now()
		if err := apply(&doc, now); err != nil {
			return err
		}
		if doc.Status == before && doc.PrintedCount == printed {
			return nil
		}
		doc.UpdatedAt = now
		return tx.SaveDocument(ctx, doc)
	})
	return doc, err
}

func (s *Service) record(ctx context.Context, actorID int64, action string, doc Document, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["type"] = string(doc.Type)
	meta["status"] = string(doc.Status)
	if doc.DocNumber != nil {
		meta["doc_number"] = *doc.DocNumber
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "document",
		EntityID: fmt.Sprintf("%d", doc.ID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("document audit failed", slog.Int64("document_id", doc.ID), slog.String("action", action), slog.Any("error", err))
	}
}

func applyPatch(doc *Document, patch UpdateDraftInput) error {
	if err := shared.ValidateStruct(patch); err != nil {
		return err
	}
	if patch.CustomerID != nil {
		doc.CustomerID = *patch.CustomerID
	}
	if patch.BillingAddressID != nil {
		doc.BillingAddressID = patch.BillingAddressID
	}
	if patch.ShippingAddressID != nil {
		doc.ShippingAddressID = patch.ShippingAddressID
	}
	if patch.Currency != nil {
		currency, err := shared.NormalizeCurrency(*patch.Currency)
		if err != nil {
			return err
		}
		doc.Currency = currency
	}
	if patch.DefaultVATRate != nil {
		rate, err := normalizeDefaultRate(*patch.DefaultVATRate)
		if err != nil {
			return err
		}
		doc.DefaultVATRate = rate
	}
	if patch.IssueDate != nil {
		doc.IssueDate = patch.IssueDate
	}
	if patch.DueDate != nil {
		doc.DueDate = patch.DueDate
	}
	if patch.Notes != nil {
		doc.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.Items != nil {
		return applyItems(doc, *patch.Items)
	}
	return recompute(doc)
}

// applyItems replaces the document lines and refreshes the draft totals.
func applyItems(doc *Document, inputs []ItemInput) error {
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		if err := shared.ValidateStruct(in); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		items = append(items, Item{
			DocumentID:      doc.ID,
			LineNo:          i + 1,
			ProductID:       in.ProductID,
			Description:     strings.TrimSpace(in.Description),
			Quantity:        strings.TrimSpace(in.Quantity),
			UnitPriceCents:  in.UnitPriceCents,
			DiscountPercent: strings.TrimSpace(in.DiscountPercent),
			DiscountCents:   in.DiscountCents,
			VATRate:         strings.TrimSpace(in.VATRate),
		})
	}
	doc.Items = items
	return recompute(doc)
}

// recompute prices every item with the money engine and rebuilds the
// document totals and VAT summary. Stored totals are never trusted.
func recompute(doc *Document) error {
	lines := make([]money.Line, len(doc.Items))
	for i, it := range doc.Items {
		lines[i] = money.Line{
			Quantity:        it.Quantity,
			UnitPriceCents:  it.UnitPriceCents,
			DiscountPercent: it.DiscountPercent,
			DiscountCents:   it.DiscountCents,
			VATRate:         it.VATRate,
		}
	}
	totals, err := money.ComputeLines(lines, money.LineOptions{DefaultVATRate: doc.DefaultVATRate})
	if err != nil {
		return err
	}
	for i, t := range totals {
		doc.Items[i].NetCents = t.NetCents
		doc.Items[i].VATCents = t.VATCents
		doc.Items[i].GrossCents = t.GrossCents
	}
	summary := money.SummariseDocumentTotals(totals)
	doc.NetCents, doc.VATCents, doc.GrossCents = summary.NetCents, summary.VATCents, summary.GrossCents
	doc.VATSummary = summary.ByRate
	return nil
}

func normalizeDefaultRate(rate string) (string, error) {
	if strings.TrimSpace(rate) == "" {
		return "0", nil
	}
	norm, err := money.NormalizeRate(rate)
	if err != nil {
		return "", fmt.Errorf("default vat rate: %w", err)
	}
	return norm, nil
}

func optionalActor(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func documentRef(doc Document) string {
	if doc.DocNumber != nil {
		return fmt.Sprintf("%s %s", doc.Type, *doc.DocNumber)
	}
	return fmt.Sprintf("%s #%d", doc.Type, doc.ID)
}
