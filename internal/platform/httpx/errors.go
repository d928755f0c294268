package httpx

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// StatusFor maps a domain error code to the HTTP status the routing layer returns.
func StatusFor(code shared.Code) int {
	switch code {
	case shared.CodeNotFound, shared.CodeOrderNotFound:
		return http.StatusNotFound
	case shared.CodeInvalidMoneyFormat, shared.CodeInvalidQuantity, shared.CodeInvalidFactor,
		shared.CodeInvalidInput, shared.CodeInvalidItems, shared.CodeInvalidLine, shared.CodeMissingVersion:
		return http.StatusBadRequest
	case shared.CodeNegativeStock, shared.CodeShipmentAlreadyPosted, shared.CodeInvalidTransition,
		shared.CodeImmutableDocument, shared.CodeConcurrentUpdate, shared.CodeDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807. Errors
// without a code are reported as 500 without leaking their message.
func RespondError(w http.ResponseWriter, err error) {
	code := shared.CodeOf(err)
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		JSON(w, status, ProblemDetail{Title: http.StatusText(status), Status: status, Code: "INTERNAL"})
		return
	}
	JSON(w, status, ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
		Code:   string(code),
	})
}
