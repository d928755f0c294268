package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// MovementType enumerates the business reason for a movement.
type MovementType string

const (
	MovementShipment   MovementType = "shipment"
	MovementReceipt    MovementType = "receipt"
	MovementAdjustment MovementType = "adjustment"
	MovementProduction MovementType = "production"
	MovementReturn     MovementType = "return"
)

// Direction is the sign of a movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Movement is one immutable ledger row.
type Movement struct {
	ID            int64
	BatchID       uuid.UUID
	ProductID     int64
	DocumentID    *int64
	OrderID       *int64
	Type          MovementType
	Direction     Direction
	Quantity      decimal.Decimal
	UnitCostCents *int64
	Currency      string
	Lot           string
	Location      string
	Notes         string
	CreatedAt     time.Time
	CreatedBy     int64
}

// Signed returns the quantity with the sign of its direction.
func (m Movement) Signed() decimal.Decimal {
	if m.Direction == DirectionOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Snapshot is stock derived from the ledger.
type Snapshot struct {
	ProductID int64
	OnHand    decimal.Decimal
	At        time.Time
}

// ShipmentLine is one product line of a shipment.
type ShipmentLine struct {
	ProductID int64
	Quantity  string
	Lot       string
	Location  string
	Notes     string
}

// ShipmentInput posts outbound stock for a delivery document.
type ShipmentInput struct {
	DocumentID int64
	OrderID    *int64
	Lines      []ShipmentLine
	ActorID    int64
}

// ReceiptInput posts inbound stock.
type ReceiptInput struct {
	// Type is receipt, production or return; empty means receipt.
	Type          MovementType
	ProductID     int64
	Quantity      string
	UnitCostCents *int64
	Currency      string
	DocumentID    *int64
	OrderID       *int64
	Lot           string
	Location      string
	Notes         string
	ActorID       int64
}

// AdjustmentInput corrects stock. Quantity is signed.
type AdjustmentInput struct {
	ProductID int64
	Quantity  string
	Lot       string
	Location  string
	Notes     string
	ActorID   int64
}

// PostingResult describes the movements written by one posting call.
type PostingResult struct {
	BatchID   uuid.UUID
	Movements []Movement
}

// MovementFilter selects stock card entries.
type MovementFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// StockCardEntry is a movement with the running balance after it.
type StockCardEntry struct {
	Movement
	Balance decimal.Decimal
}

var (
	// ErrDocumentNotFound is returned when a shipment names an unknown document.
	ErrDocumentNotFound = shared.NewError(shared.CodeNotFound, "inventory: document not found")
	// ErrProductNotFound is returned for stock queries on unknown products.
	ErrProductNotFound = shared.NewError(shared.CodeNotFound, "inventory: product not found")
	// ErrOrderNotFound is returned when a shipment names an unknown order.
	ErrOrderNotFound = shared.NewError(shared.CodeOrderNotFound, "inventory: order not found")
	// ErrInvalidLine is returned for lines without a product or a positive quantity.
	ErrInvalidLine = shared.NewError(shared.CodeInvalidLine, "inventory: invalid line")
	// ErrNegativeStock is returned when a posting would drive stock below zero.
	ErrNegativeStock = shared.NewError(shared.CodeNegativeStock, "inventory: insufficient stock")
	// ErrShipmentAlreadyPosted is returned when a document already shipped.
	ErrShipmentAlreadyPosted = shared.NewError(shared.CodeShipmentAlreadyPosted, "inventory: shipment already posted for document")
)
