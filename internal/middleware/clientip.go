package middleware

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the caller address, preferring the first
// X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
//
// Proxy headers are trusted; the service must only be reachable through
// the reverse proxy that sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
