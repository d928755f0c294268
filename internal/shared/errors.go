package shared

import "errors"

// Code is the machine-readable error code surfaced to the routing layer.
type Code string

const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeOrderNotFound         Code = "ORDER_NOT_FOUND"
	CodeInvalidLine           Code = "INVALID_LINE"
	CodeNegativeStock         Code = "NEGATIVE_STOCK"
	CodeShipmentAlreadyPosted Code = "SHIPMENT_ALREADY_POSTED"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"
	CodeImmutableDocument     Code = "IMMUTABLE_DOCUMENT"
	CodeInvalidItems          Code = "INVALID_ITEMS"
	CodeConcurrentUpdate      Code = "CONCURRENT_UPDATE"
	CodeMissingVersion        Code = "MISSING_VERSION"
	CodeInvalidMoneyFormat    Code = "INVALID_MONEY_FORMAT"
	CodeInvalidQuantity       Code = "INVALID_QUANTITY"
	CodeInvalidFactor         Code = "INVALID_FACTOR"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeDuplicate             Code = "DUPLICATE"
)

// Error is a domain error carrying a Code. Two errors match under errors.Is
// when their codes are equal, so wrapped sentinels keep their identity.
type Error struct {
	Code    Code
	Message string
}

// NewError constructs a coded error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code from err, or "" when err is not a domain error.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = NewError(CodeNotFound, "not found")
	// ErrConcurrentUpdate indicates a stale row_version was presented.
	ErrConcurrentUpdate = NewError(CodeConcurrentUpdate, "record was modified by another operator, reload and retry")
	// ErrMissingVersion indicates an update without row_version.
	ErrMissingVersion = NewError(CodeMissingVersion, "row_version is required for updates")
	// ErrInvalidInput indicates a request failed shape validation.
	ErrInvalidInput = NewError(CodeInvalidInput, "invalid input")
)
