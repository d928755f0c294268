package sequence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Well-known sequence keys.
const (
	KeyInvoice      = "invoice"
	KeyCreditNote   = "credit_note"
	KeyDeliveryNote = "delivery_note"
	KeySalesOrder   = "sales_order"
)

const maxPadLength = 18

// Sequence is one counter row.
type Sequence struct {
	Key           string
	Prefix        string
	Suffix        string
	PadLength     int
	CurrentYear   int
	LastNumber    int64
	ResetAnnually bool
	UpdatedAt     time.Time
}

// Reservation is a number handed out by the allocator.
type Reservation struct {
	Key       string
	Year      int
	Number    int64
	Formatted string
}

// Defaults apply to keys seen for the first time.
type Defaults struct {
	PadLength     int
	ResetAnnually bool
}

// ErrInvalidSequence reports a bad key or configuration.
var ErrInvalidSequence = shared.NewError(shared.CodeInvalidInput, "sequence: invalid configuration")

// DefaultPrefix returns the prefix used when a key is created implicitly.
func DefaultPrefix(key string) string {
	switch key {
	case KeyInvoice:
		return "INV"
	case KeyCreditNote:
		return "CN"
	case KeyDeliveryNote:
		return "DN"
	case KeySalesOrder:
		return "SO"
	default:
		return strings.ToUpper(key)
	}
}

// Format renders number as PREFIX-[YYYY-]NNNNNN[SUFFIX].
func (s Sequence) Format(number int64, year int) string {
	var b strings.Builder
	b.WriteString(s.Prefix)
	b.WriteByte('-')
	if s.ResetAnnually {
		b.WriteString(strconv.Itoa(year))
		b.WriteByte('-')
	}
	fmt.Fprintf(&b, "%0*d", s.PadLength, number)
	b.WriteString(s.Suffix)
	return b.String()
}

func (s Sequence) validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return fmt.Errorf("%w: key required", ErrInvalidSequence)
	}
	if strings.TrimSpace(s.Prefix) == "" {
		return fmt.Errorf("%w: prefix required for %q", ErrInvalidSequence, s.Key)
	}
	if s.PadLength < 1 || s.PadLength > maxPadLength {
		return fmt.Errorf("%w: pad length %d out of range", ErrInvalidSequence, s.PadLength)
	}
	return nil
}
