package domain

import (
	"errors"
	"fmt"
	"sort"
)

// Error codes. Each maps to one HTTP status in middleware.ErrorCodeToHTTPStatus.
const (
	ECONFLICT     = "conflict"     // duplicate reference or row
	EINTERNAL     = "internal"     // details hidden from callers
	EINVALID      = "invalid"      // caller precondition failed
	ENOTFOUND     = "not_found"    // missing transaction, invoice, provider...
	EUNAUTHORIZED = "unauthorized" // no portal session or operator token
	EFORBIDDEN    = "forbidden"    // authenticated but not the owner
	EUPSTREAM     = "upstream"     // processor unreachable, malformed or slow
	ESIGNATURE    = "signature"    // inbound payload failed verification
	ESTATE        = "state"        // event does not apply to the current state
	EINTEGRITY    = "integrity"    // documents disagree, needs human review
	ETOOLARGE     = "too_large"    // request body over the endpoint limit
	ERATELIMIT    = "rate_limit"   // too many requests from one client
)

// genericMessages replace the message of codes whose details must not reach
// the buyer.
var genericMessages = map[string]string{
	EINTERNAL:  "An internal error occurred. Please try again later.",
	EUPSTREAM:  "The payment processor is not available right now. Please try again later.",
	ESIGNATURE: "We could not process this payment response.",
}

// Error is an application error. Message is safe to show to users unless
// the code is in genericMessages; Op and Err are for logs only.
type Error struct {
	Code    string
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the outermost domain error in err's chain.
// Validation errors are EINVALID, anything else EINTERNAL, nil "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if IsValidationError(err) {
		return EINVALID
	}
	return EINTERNAL
}

// ErrorMessage returns the user-facing message for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		if generic, ok := genericMessages[e.Code]; ok {
			return generic
		}
		return e.Message
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		if len(ve.Fields) == 1 {
			for _, msg := range ve.Fields {
				return msg
			}
		}
		return "Please correct the highlighted fields"
	}

	return genericMessages[EINTERNAL]
}

// ErrorOp returns the operation that produced err, for logging.
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Op
	}
	return ""
}

// Errorf creates a domain error with a formatted message.
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code, operation and message to err. Sentinels wrapped
// this way still match errors.Is. Returns nil for a nil err.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// ValidationError collects field-level failures of a request or a
// configuration record.
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	prefix := ""
	if e.Op != "" {
		prefix = e.Op + ": "
	}
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return prefix + field + ": " + msg
		}
	}
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return fmt.Sprintf("%svalidation failed for %d fields %v", prefix, len(e.Fields), names)
}

// NewValidationError creates a validation error for one field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError adds a field to err when it is a ValidationError, or starts
// a new one otherwise.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return &ValidationError{Fields: map[string]string{field: message}}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields returns the field errors of err, or nil.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// NotFound reports a missing resource by its identifier.
func NotFound(op, resource, identifier string) error {
	return &Error{Code: ENOTFOUND, Op: op, Message: fmt.Sprintf("%s not found: %s", resource, identifier)}
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

func Integrity(op, message string) error {
	return &Error{Code: EINTEGRITY, Op: op, Message: message}
}

// Upstream wraps a processor failure. Callers see a generic message.
func Upstream(err error, op, message string) error {
	return &Error{Code: EUPSTREAM, Op: op, Message: message, Err: err}
}

// Internal wraps an unexpected failure. Callers see a generic message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
