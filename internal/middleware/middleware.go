// Package middleware holds the HTTP middleware of the payment service:
// request ids, portal sessions, operator tokens, limits and metrics.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rutavity/payments/internal/domain"
)

var codeStatus = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.ESIGNATURE:    http.StatusBadRequest,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.EFORBIDDEN:    http.StatusForbidden,
	domain.ENOTFOUND:     http.StatusNotFound,
	domain.ECONFLICT:     http.StatusConflict,
	domain.ESTATE:        http.StatusConflict,
	domain.EINTEGRITY:    http.StatusConflict,
	domain.ETOOLARGE:     http.StatusRequestEntityTooLarge,
	domain.ERATELIMIT:    http.StatusTooManyRequests,
	domain.EUPSTREAM:     http.StatusServiceUnavailable,
}

// ErrorCodeToHTTPStatus maps a domain error code to its HTTP status.
// Unknown codes are 500.
func ErrorCodeToHTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AcceptsJSON reports whether the client talks JSON. Browser flows get
// redirects and plain text instead.
func AcceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// respondWithError is the middleware-side twin of handler.ErrorResponse,
// which cannot be imported from here without a cycle.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	GetLogger(r.Context()).Info("Request refused by middleware", "error", err.Error(), "code", code, "status", status)

	if !AcceptsJSON(r) {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Unauthorized("", "Sign in to continue"))
}

func respondForbidden(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Errorf(domain.EFORBIDDEN, "", "You don't have permission to access this resource"))
}

func respondTooManyRequests(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Errorf(domain.ERATELIMIT, "", "Too many requests"))
}

func respondTooLarge(w http.ResponseWriter, r *http.Request, message string) {
	respondWithError(w, r, domain.Errorf(domain.ETOOLARGE, "", "%s", message))
}
