package routes

import (
	"net/http"

	"github.com/rutavity/payments/internal/middleware"
	"github.com/rutavity/payments/internal/router"
)

// RegisterPaymentRoutes registers the portal checkout routes, the offline
// settlement routes and the processor callbacks.
//
// Return and webhook routes carry no session requirement. Their requests
// are authenticated by the processor signature.
func RegisterPaymentRoutes(r *router.Router, deps PaymentDeps) {
	h := deps.Handler

	// Portal checkout (signed-in partner)
	portal := r.Group(middleware.RequirePartner)
	checkout := portal.Group(deps.CheckoutLimiter.Middleware)
	checkout.Post("/my/invoices/pay", h.PayInvoices)
	checkout.Post("/shop/pay", h.PayOrder)
	portal.Get("/my/invoices/overdue", h.OverdueInvoices)
	portal.Get("/payment/transactions/{reference}", h.Transaction)

	// Offline settlement
	portal.Post("/payment/credit/process", h.ProcessCredit)
	portal.Match([]string{http.MethodGet, http.MethodPost}, "/payment/pos_store/process", h.ProcessPOSStore)
	r.Post("/payment/pos_store/settle", h.SettlePOS, middleware.RequireToken(deps.POSToken))

	// Method discovery, open to anonymous visitors
	r.Get("/payment/methods/{method}/form", h.MethodForm)
	r.Get("/payment/providers/{provider}/methods", h.ProviderMethods)

	// Processor callbacks
	inbound := r.Group(deps.InboundLimiter.Middleware)
	for _, provider := range deps.Providers {
		base := "/payment/" + string(provider)
		inbound.Match([]string{http.MethodGet, http.MethodPost}, base+"/return", h.Return(provider))
		inbound.Post(base+"/webhook", h.Webhook(provider), middleware.MaxBodySize(middleware.WebhookMaxBodySize))
	}

	// Operators
	r.Post("/payment/transactions/{reference}/cancel", h.Cancel, middleware.RequireToken(deps.AdminToken))
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}
}
