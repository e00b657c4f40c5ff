package routes

import (
	"net/http"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/handler/payments"
	"github.com/rutavity/payments/internal/middleware"
)

// PaymentDeps contains dependencies for payment routes
type PaymentDeps struct {
	Handler *payments.Handler

	// Processors whose return and webhook endpoints are mounted.
	Providers []domain.ProviderCode

	// Bearer tokens for the store terminal and for operators. An empty
	// token disables its endpoints.
	POSToken   string
	AdminToken string

	// Rate limiters for buyer checkouts and processor callbacks.
	CheckoutLimiter *middleware.RateLimiter
	InboundLimiter  *middleware.RateLimiter
}

// OpsDeps contains dependencies for operational routes
type OpsDeps struct {
	Metrics http.Handler
	Health  http.HandlerFunc
}
