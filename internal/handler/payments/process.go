package payments

import (
	"net/http"
	"net/url"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/handler"
	"github.com/rutavity/payments/internal/middleware"
)

type processCreditRequest struct {
	Provider  string `json:"provider" validate:"required"`
	Reference string `json:"reference" validate:"required,max=64"`
}

type settlePOSRequest struct {
	SaleOrderID int64 `json:"sale_order_id" validate:"required,gt=0"`
}

// ProcessCredit handles POST /payment/credit/process.
func (h *Handler) ProcessCredit(w http.ResponseWriter, r *http.Request) {
	var req processCreditRequest
	if err := bind(r, &req, func(form url.Values) {
		req.Provider = form.Get("provider")
		req.Reference = form.Get("reference")
	}); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := handler.Validate("payments.process_credit", req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	tx, err := h.svc.ProcessCredit(r.Context(), domain.ProviderCode(req.Provider), req.Reference, middleware.GetPartnerID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.cookies.FinishCart(w, firstOrder(tx))
	h.finish(w, r, tx)
}

// ProcessPOSStore handles GET|POST /payment/pos_store/process?reference=.
// Calling it again for a pending transaction is harmless.
func (h *Handler) ProcessPOSStore(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		handler.ErrorResponse(w, r, domain.Invalid("payments.process_pos_store", "Missing payment reference"))
		return
	}

	tx, err := h.svc.ProcessPOSStore(r.Context(), reference, middleware.GetPartnerID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.cookies.FinishCart(w, firstOrder(tx))
	h.finish(w, r, tx)
}

// SettlePOS handles POST /payment/pos_store/settle, called by the store
// terminal once the cashier took the payment.
func (h *Handler) SettlePOS(w http.ResponseWriter, r *http.Request) {
	var req settlePOSRequest
	if err := bind(r, &req, func(form url.Values) {
		if ids := parseIDs(form["sale_order_id"]); len(ids) > 0 {
			req.SaleOrderID = ids[0]
		}
	}); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := handler.Validate("payments.settle_pos", req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	out, err := h.svc.SettlePOSOrder(r.Context(), req.SaleOrderID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, r, http.StatusOK, map[string]any{
		"transaction": viewOf(out.Transaction),
		"changed":     out.Changed,
	})
}

// finish sends the buyer to the confirmation page. Script clients get the
// target as JSON instead of a redirect.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, tx *domain.Transaction) {
	target := h.confirmationURL(tx.Reference)
	if middleware.AcceptsJSON(r) {
		handler.WriteJSON(w, r, http.StatusOK, map[string]any{
			"transaction":  viewOf(tx),
			"redirect_url": target,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
