// Package handler holds the response helpers shared by the HTTP handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/middleware"
	"github.com/rutavity/payments/internal/telemetry"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	return middleware.ErrorCodeToHTTPStatus(code)
}

// ErrorResponse logs err and writes it as JSON or plain text depending on
// Accept. Internal errors are reported to Sentry. The message comes from
// domain.ErrorMessage, which never exposes internal or upstream details.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	message := domain.ErrorMessage(err)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{"error", err.Error(), "code", code, "status", status}
	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}

	switch {
	case status >= 500 && code != domain.EUPSTREAM:
		logger.ErrorContext(r.Context(), "request failed", attrs...)
		telemetry.CaptureError(err, map[string]interface{}{
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		})
	case code == domain.ESIGNATURE, code == domain.EUPSTREAM:
		logger.WarnContext(r.Context(), "request rejected", attrs...)
	default:
		logger.InfoContext(r.Context(), "request rejected", attrs...)
	}

	writeError(w, r, status, code, message, nil)
}

// ValidationErrorResponse writes field errors when err carries them and
// falls back to ErrorResponse otherwise.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsValidationError(err) {
		ErrorResponse(w, r, err)
		return
	}
	middleware.GetLogger(r.Context()).InfoContext(r.Context(), "request validation failed", "error", err.Error())
	writeError(w, r, http.StatusBadRequest, domain.EINVALID, "Please correct the highlighted fields", domain.GetValidationFields(err))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields map[string]string) {
	if !middleware.AcceptsJSON(r) {
		http.Error(w, message, status)
		return
	}
	body := map[string]any{"code": code, "message": message}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	WriteJSON(w, r, status, map[string]any{"error": body})
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		middleware.GetLogger(r.Context()).Error("Failed to encode response", "error", err)
	}
}
