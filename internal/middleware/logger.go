package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// LoggerContextKey holds the request-scoped logger.
const LoggerContextKey contextKey = "logger"

// WithRequestLogger stores a logger tagged with the request id, route, client
// address and, for portal sessions, the partner. It must run after RequestID
// and WithPartner.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client_ip", GetClientIP(r)),
			}
			if id := GetRequestID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if partnerID := GetPartnerID(r.Context()); partnerID != 0 {
				attrs = append(attrs, slog.Int64("partner_id", partnerID))
			}

			ctx := context.WithValue(r.Context(), LoggerContextKey, base.With(attrs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request-scoped logger, or slog.Default outside a
// request.
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
