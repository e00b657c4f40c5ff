package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", &Error{Code: EINVALID, Message: "Select at least one invoice"}, "Select at least one invoice"},
		{"with op", &Error{Code: EINVALID, Op: "payment.pay_many", Message: "Select at least one invoice"}, "payment.pay_many: Select at least one invoice"},
		{"with op and cause", &Error{Code: EUPSTREAM, Op: "pse.create", Message: "processor unreachable", Err: cause}, "pse.create: processor unreachable: connection refused"},
		{"cause without op", &Error{Code: EUPSTREAM, Message: "processor unreachable", Err: cause}, "processor unreachable: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"domain error", Errorf(EUPSTREAM, "", "down"), EUPSTREAM},
		{"wrapped by fmt", fmt.Errorf("apply: %w", Errorf(ESTATE, "", "terminal")), ESTATE},
		{"outermost code wins", WrapError(Errorf(EINVALID, "", "x"), EINTEGRITY, "op", "y"), EINTEGRITY},
		{"validation error", NewValidationError("op", "method", "required"), EINVALID},
		{"plain error", errors.New("boom"), EINTERNAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	multi := AddFieldError(NewValidationError("op", "provider", "required"), "method", "required")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid passes through", Invalid("credit", "Insufficient credit"), "Insufficient credit"},
		{"internal is hidden", Internal(errors.New("db at 10.0.0.1 down"), "op", "save failed"), "An internal error occurred. Please try again later."},
		{"upstream is generic", Upstream(errors.New("i/o timeout"), "pse.query", "timeout"), "The payment processor is not available right now. Please try again later."},
		{"signature is neutral", Errorf(ESIGNATURE, "", "hmac mismatch"), "We could not process this payment response."},
		{"single field", NewValidationError("op", "reference", "reference is required"), "reference is required"},
		{"several fields", multi, "Please correct the highlighted fields"},
		{"plain error is hidden", errors.New("secret"), "An internal error occurred. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestErrorOp(t *testing.T) {
	assert.Equal(t, "payment.pay_many", ErrorOp(Invalid("payment.pay_many", "x")))
	assert.Equal(t, "provider.validate", ErrorOp(NewValidationError("provider.validate", "public_key", "required")))
	assert.Empty(t, ErrorOp(errors.New("plain")))
	assert.Empty(t, ErrorOp(nil))
}

func TestWrapError(t *testing.T) {
	sentinel := Errorf(EINVALID, "", "Your portfolio is blocked")

	err := WrapError(sentinel, EINVALID, "credit.check_portfolio", "Your portfolio is blocked: mora 90 days")
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "Your portfolio is blocked: mora 90 days", ErrorMessage(err))

	assert.NoError(t, WrapError(nil, EINTERNAL, "op", "msg"))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("payment.credit_process", "reference", "reference is required")
	assert.Equal(t, "payment.credit_process: reference: reference is required", err.Error())

	err = AddFieldError(err, "provider", "provider is required")
	assert.Len(t, GetValidationFields(err), 2)
	assert.Equal(t, "payment.credit_process: validation failed for 2 fields [provider reference]", err.Error())
	assert.True(t, IsValidationError(err))

	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Nil(t, GetValidationFields(errors.New("plain")))

	fresh := AddFieldError(nil, "customer_id", "required")
	require.True(t, IsValidationError(fresh))
	assert.Equal(t, map[string]string{"customer_id": "required"}, GetValidationFields(fresh))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"NotFound", NotFound("payment.get", "transaction", "RTV-1"), ENOTFOUND},
		{"Unauthorized", Unauthorized("pos.settle", "bad token"), EUNAUTHORIZED},
		{"Invalid", Invalid("payment.pay_many", "no invoices"), EINVALID},
		{"Conflict", Conflict("payment.create", "duplicate reference"), ECONFLICT},
		{"Upstream", Upstream(errors.New("timeout"), "pse.query", "processor timeout"), EUPSTREAM},
		{"Integrity", Integrity("payment.settle", "residual changed"), EINTEGRITY},
		{"Internal", Internal(errors.New("db"), "payment.save", "failed"), EINTERNAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsCode(tt.err, tt.code))
		})
	}

	assert.Equal(t, "transaction not found: RTV-1", ErrorMessage(NotFound("payment.get", "transaction", "RTV-1")))
}
