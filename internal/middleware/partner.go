package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/rutavity/payments/internal/cookie"
)

type contextKey string

// PartnerContextKey is the context key for the authenticated partner id.
const PartnerContextKey contextKey = "partner_id"

// SessionResolver maps a portal session token to its partner.
type SessionResolver interface {
	PartnerIDForSession(ctx context.Context, token string, now time.Time) (int64, error)
}

// WithPartner resolves the session cookie and adds the partner id to the
// request context. Requests without a valid session continue anonymously.
func WithPartner(sessions SessionResolver, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookie.Get(r, cookie.SessionCookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			partnerID, err := sessions.PartnerIDForSession(r.Context(), token, now())
			if err != nil {
				GetLogger(r.Context()).Debug("Ignoring portal session", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), PartnerContextKey, partnerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePartner rejects anonymous requests with 401.
func RequirePartner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPartnerID(r.Context()) == 0 {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPartnerID returns the authenticated partner id, or zero when anonymous.
func GetPartnerID(ctx context.Context) int64 {
	id, _ := ctx.Value(PartnerContextKey).(int64)
	return id
}

// RequireToken guards system-to-system endpoints (administration, POS) with
// a static bearer token. An empty token disables the endpoints entirely.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				respondForbidden(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || got == "" {
				respondUnauthorized(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondForbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
