package payments

import (
	"net/http"
	"net/url"

	"github.com/rutavity/payments/internal/cookie"
	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/handler"
	"github.com/rutavity/payments/internal/middleware"
	"github.com/rutavity/payments/internal/payment"
)

type payInvoicesRequest struct {
	InvoiceIDs []int64 `json:"invoice_ids" validate:"required,min=1,dive,gt=0"`
	Provider   string  `json:"provider" validate:"required"`
	Method     string  `json:"method" validate:"required"`
}

type payOrderRequest struct {
	SaleOrderID int64  `json:"sale_order_id"`
	Provider    string `json:"provider" validate:"required"`
	Method      string `json:"method" validate:"required"`
}

// checkoutResponse tells the portal script where to go next.
type checkoutResponse struct {
	Transaction transactionView `json:"transaction"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	ProcessURL  string          `json:"process_url,omitempty"`
}

func responseOf(res *payment.CheckoutResult) checkoutResponse {
	return checkoutResponse{
		Transaction: viewOf(res.Transaction),
		RedirectURL: res.RedirectURL,
		ProcessURL:  res.ProcessURL,
	}
}

// PayInvoices handles POST /my/invoices/pay.
func (h *Handler) PayInvoices(w http.ResponseWriter, r *http.Request) {
	var req payInvoicesRequest
	if err := bind(r, &req, func(form url.Values) {
		req.InvoiceIDs = parseIDs(form["invoice_ids"])
		req.Provider = form.Get("provider")
		req.Method = form.Get("method")
	}); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := handler.Validate("payments.pay_invoices", req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	res, err := h.svc.PayMany(r.Context(), payment.PayManyParams{
		PartnerID:  middleware.GetPartnerID(r.Context()),
		InvoiceIDs: req.InvoiceIDs,
		Provider:   domain.ProviderCode(req.Provider),
		Method:     domain.MethodCode(req.Method),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, r, http.StatusCreated, responseOf(res))
}

// PayOrder handles POST /shop/pay. The sale order defaults to the one in
// the shopper's cart cookie.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	var req payOrderRequest
	if err := bind(r, &req, func(form url.Values) {
		ids := parseIDs(form["sale_order_id"])
		if len(ids) > 0 {
			req.SaleOrderID = ids[0]
		}
		req.Provider = form.Get("provider")
		req.Method = form.Get("method")
	}); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.SaleOrderID == 0 {
		req.SaleOrderID = cookie.GetID(r, cookie.CartCookieName)
	}
	if req.SaleOrderID <= 0 {
		handler.ErrorResponse(w, r, domain.Invalid("payments.pay_order", "Your cart is empty"))
		return
	}
	if err := handler.Validate("payments.pay_order", req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	res, err := h.svc.PayOrder(r.Context(), payment.PayOrderParams{
		PartnerID:   middleware.GetPartnerID(r.Context()),
		SaleOrderID: req.SaleOrderID,
		Provider:    domain.ProviderCode(req.Provider),
		Method:      domain.MethodCode(req.Method),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, r, http.StatusCreated, responseOf(res))
}
