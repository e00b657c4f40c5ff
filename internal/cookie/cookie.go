// Package cookie provides the portal cookie helpers shared by the payment
// endpoints. The host portal issues the session and cart cookies; this
// package reads them and rotates the cart handles after a checkout.
package cookie

import (
	"net/http"
	"strconv"
	"time"
)

// Config holds cookie scoping.
type Config struct {
	// Domain scopes cookies to the portal origin. Empty means host-only.
	Domain string

	// Secure determines whether cookies require HTTPS.
	// Should be true in production, false in development.
	Secure bool
}

// NewConfig creates a new cookie configuration.
func NewConfig(domain string, secure bool) *Config {
	return &Config{
		Domain: domain,
		Secure: secure,
	}
}

// Set writes an HttpOnly, Lax cookie on path "/".
func (c *Config) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes a cookie by setting MaxAge to -1.
// Domain must match the original cookie's domain.
func (c *Config) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FinishCart drops the cart once its order has been handed to a payment and
// keeps the order id so the confirmation page can still find it.
func (c *Config) FinishCart(w http.ResponseWriter, saleOrderID int64) {
	c.Clear(w, CartCookieName)
	if saleOrderID > 0 {
		c.Set(w, LastOrderCookieName, strconv.FormatInt(saleOrderID, 10), LastOrderMaxAge)
	}
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// GetID reads a cookie holding a numeric id. Missing or malformed values
// yield zero.
func GetID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(Get(r, name), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// Cookie names shared with the host portal.
const (
	// SessionCookieName holds the partner's portal session token.
	SessionCookieName = "rutavity_session"

	// CartCookieName holds the sale order id of the open cart.
	CartCookieName = "rutavity_cart"

	// LastOrderCookieName holds the sale order id of the last checkout.
	LastOrderCookieName = "rutavity_last_order"
)

// LastOrderMaxAge bounds how long the confirmation page can find the order.
const LastOrderMaxAge = 24 * time.Hour
