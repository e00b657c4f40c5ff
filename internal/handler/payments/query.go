package payments

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/handler"
	"github.com/rutavity/payments/internal/middleware"
)

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Transaction handles GET /payment/transactions/{reference} for the
// confirmation page.
func (h *Handler) Transaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.TransactionForPartner(r.Context(), r.PathValue("reference"), middleware.GetPartnerID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, r, http.StatusOK, viewOf(tx))
}

// Cancel handles POST /payment/transactions/{reference}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := bind(r, &req, func(form url.Values) {
		req.Reason = form.Get("reason")
	}); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := handler.Validate("payments.cancel", req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	out, err := h.svc.Cancel(r.Context(), r.PathValue("reference"), req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, r, http.StatusOK, map[string]any{
		"transaction": viewOf(out.Transaction),
		"changed":     out.Changed,
	})
}

// MethodForm handles GET /payment/methods/{method}/form.
func (h *Handler) MethodForm(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.InlineFormData(r.Context(), domain.MethodCode(r.PathValue("method")), middleware.GetPartnerID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, r, http.StatusOK, data)
}

type methodView struct {
	Method           domain.MethodCode `json:"method"`
	DisplayName      string            `json:"display_name"`
	External         bool              `json:"external"`
	RequiresShipping bool              `json:"requires_shipping"`
	AllowsInvoices   bool              `json:"allows_invoices"`
	InlineForm       bool              `json:"inline_form"`
}

// ProviderMethods handles GET /payment/providers/{provider}/methods.
func (h *Handler) ProviderMethods(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.MethodsForProvider(r.Context(), domain.ProviderCode(r.PathValue("provider")))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	methods := make([]methodView, 0, len(rules))
	for _, rule := range rules {
		methods = append(methods, methodView{
			Method:           rule.Method,
			DisplayName:      rule.DisplayName,
			External:         rule.ExternalLeg,
			RequiresShipping: rule.RequiresShipping,
			AllowsInvoices:   rule.AllowsInvoices,
			InlineForm:       rule.InlineForm,
		})
	}
	handler.WriteJSON(w, r, http.StatusOK, map[string]any{"methods": methods})
}

type invoiceView struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Residual string    `json:"residual"`
	Currency string    `json:"currency"`
	DueDate  time.Time `json:"due_date"`
}

// OverdueInvoices handles GET /my/invoices/overdue.
func (h *Handler) OverdueInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.svc.OverdueInvoices(r.Context(), middleware.GetPartnerID(r.Context()), h.now())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	out := make([]invoiceView, 0, len(invoices))
	for i := range invoices {
		out = append(out, invoiceView{
			ID:       invoices[i].ID,
			Name:     invoices[i].Name,
			Residual: invoices[i].Residual.String(),
			Currency: invoices[i].Currency,
			DueDate:  invoices[i].EffectiveDueDate(),
		})
	}
	handler.WriteJSON(w, r, http.StatusOK, map[string]any{"invoices": out})
}
