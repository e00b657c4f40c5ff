package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutavity/payments/internal/domain"
)

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func jsonRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Accept", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestErrorResponse_JSON(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "missing transaction",
			err:         domain.NotFound("payment.get", "transaction", "RTV-0001"),
			wantStatus:  http.StatusNotFound,
			wantCode:    domain.ENOTFOUND,
			wantMessage: "transaction not found: RTV-0001",
		},
		{
			name:        "mixed currency",
			err:         domain.Invalid("payment.pay_many", "All selected invoices must share the same currency"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    domain.EINVALID,
			wantMessage: "All selected invoices must share the same currency",
		},
		{
			name:        "foreign order",
			err:         domain.Errorf(domain.EFORBIDDEN, "payment.pay_order", "This order belongs to another account"),
			wantStatus:  http.StatusForbidden,
			wantCode:    domain.EFORBIDDEN,
			wantMessage: "This order belongs to another account",
		},
		{
			name:        "finalized transaction",
			err:         domain.Errorf(domain.ESTATE, "payment.apply", "Transaction is already finalized"),
			wantStatus:  http.StatusConflict,
			wantCode:    domain.ESTATE,
			wantMessage: "Transaction is already finalized",
		},
		{
			name:        "processor down",
			err:         domain.Upstream(errors.New("dial tcp 10.1.1.1:443: i/o timeout"), "payment.originate", "processor down"),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    domain.EUPSTREAM,
			wantMessage: "The payment processor is not available right now. Please try again later.",
		},
		{
			name:        "bad signature",
			err:         domain.Errorf(domain.ESIGNATURE, "payment.handle_return", "hmac mismatch"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    domain.ESIGNATURE,
			wantMessage: "We could not process this payment response.",
		},
		{
			name:        "internal details hidden",
			err:         domain.Internal(errors.New("db at 192.168.1.100:5432"), "postgres.get_invoice", "query failed"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domain.EINTERNAL,
			wantMessage: "An internal error occurred. Please try again later.",
		},
		{
			name:        "plain error",
			err:         errors.New("unexpected"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domain.EINTERNAL,
			wantMessage: "An internal error occurred. Please try again later.",
		},
		{
			name:        "provider validation",
			err:         domain.NewValidationError("provider.validate", "public_key", "public key is required when the provider is not disabled"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    domain.EINVALID,
			wantMessage: "public key is required when the provider is not disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, jsonRequest(http.MethodGet, "/payment/transactions/RTV-0001"), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
			assert.Empty(t, body.Error.Fields)
		})
	}
}

func TestErrorResponse_PlainText(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/payment/rutavity/return?reference=RTV-1", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, domain.Errorf(domain.ESIGNATURE, "payment.handle_return", "hmac mismatch"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "We could not process this payment response.\n", rec.Body.String())
}

func TestValidationErrorResponse(t *testing.T) {
	t.Run("field errors", func(t *testing.T) {
		err := domain.NewValidationError("payment.pay_many", "method", "method is required")
		err = domain.AddFieldError(err, "invoice_ids", "invoice_ids must have at least 1")

		rec := httptest.NewRecorder()
		ValidationErrorResponse(rec, jsonRequest(http.MethodPost, "/my/invoices/pay"), err)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, domain.EINVALID, body.Error.Code)
		assert.Equal(t, map[string]string{
			"method":      "method is required",
			"invoice_ids": "invoice_ids must have at least 1",
		}, body.Error.Fields)
	})

	t.Run("falls back for other errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationErrorResponse(rec, jsonRequest(http.MethodPost, "/my/invoices/pay"), domain.NotFound("payment.get", "invoice", "70"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, decodeError(t, rec).Error.Fields)
	})
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]string{"reference": "RTV-0001"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"reference":"RTV-0001"}`, rec.Body.String())
}

func TestValidate(t *testing.T) {
	type request struct {
		Reference string  `form:"reference" validate:"required,max=64"`
		Method    string  `form:"method" validate:"required,oneof=pse credit pos_store"`
		Invoices  []int64 `json:"invoice_ids" validate:"min=1,dive,gt=0"`
	}

	require.NoError(t, Validate("test", request{Reference: "RTV-1", Method: "pse", Invoices: []int64{1}}))

	err := Validate("test", request{Method: "cash"})
	require.True(t, domain.IsValidationError(err), "got %v", err)

	fields := domain.GetValidationFields(err)
	assert.Equal(t, "reference is required", fields["reference"])
	assert.Equal(t, "method must be one of pse credit pos_store", fields["method"])
	assert.Equal(t, "invoice_ids must have at least 1", fields["invoice_ids"])

	err = Validate("test", request{Reference: "RTV-1", Method: "pse", Invoices: []int64{4, 0}})
	assert.Equal(t, "invoice_ids[1] must be greater than 0", domain.GetValidationFields(err)["invoice_ids[1]"])
}
