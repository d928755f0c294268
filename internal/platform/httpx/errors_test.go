package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

func TestStatusFor(t *testing.T) {
	cases := map[shared.Code]int{
		shared.CodeNotFound:              http.StatusNotFound,
		shared.CodeOrderNotFound:         http.StatusNotFound,
		shared.CodeInvalidLine:           http.StatusBadRequest,
		shared.CodeInvalidItems:          http.StatusBadRequest,
		shared.CodeMissingVersion:        http.StatusBadRequest,
		shared.CodeInvalidMoneyFormat:    http.StatusBadRequest,
		shared.CodeInvalidQuantity:       http.StatusBadRequest,
		shared.CodeInvalidFactor:         http.StatusBadRequest,
		shared.CodeInvalidInput:          http.StatusBadRequest,
		shared.CodeNegativeStock:         http.StatusConflict,
		shared.CodeShipmentAlreadyPosted: http.StatusConflict,
		shared.CodeInvalidTransition:     http.StatusConflict,
		shared.CodeImmutableDocument:     http.StatusConflict,
		shared.CodeConcurrentUpdate:      http.StatusConflict,
		shared.CodeDuplicate:             http.StatusConflict,
		"":                               http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

func TestRespondErrorCarriesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("post: %w", shared.NewError(shared.CodeNegativeStock, "product 4: requested 6, available 4")))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NEGATIVE_STOCK", body.Code)
	assert.Equal(t, http.StatusConflict, body.Status)
	assert.Contains(t, body.Detail, "available 4")
}

func TestRespondErrorHidesUncodedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestRespondErrorMissingReferenceIsNotFound(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", Detail: `Key (customer_id)=(99) is not present in table "customers".`}
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("create document: %w", db.MissingReference(fk)))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "a", target.Name)
}
