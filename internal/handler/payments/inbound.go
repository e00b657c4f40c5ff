package payments

import (
	"errors"
	"io"
	"net/http"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/handler"
	"github.com/rutavity/payments/internal/middleware"
	"github.com/rutavity/payments/internal/payment"
	"github.com/rutavity/payments/internal/pse"
)

// Return serves GET|POST /payment/<provider>/return, the browser coming
// back from the processor.
func (h *Handler) Return(provider domain.ProviderCode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.handleReturn(w, r, provider)
	}
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request, provider domain.ProviderCode) {
	if err := r.ParseForm(); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("payments.return", "Malformed return parameters"))
		return
	}

	params := payment.ReturnParams{
		Reference:     r.Form.Get("reference"),
		State:         r.Form.Get("state"),
		TransactionID: r.Form.Get("transaction_id"),
		ReceiptURL:    r.Form.Get("receipt_url"),
		Signature:     r.Header.Get(pse.SignatureHeader),
	}
	if params.Signature == "" {
		params.Signature = r.Form.Get("signature")
	}
	if params.Reference == "" {
		handler.ErrorResponse(w, r, domain.Invalid("payments.return", "Missing payment reference"))
		return
	}

	tx, err := h.svc.HandleReturn(r.Context(), provider, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	http.Redirect(w, r, h.confirmationURL(tx.Reference), http.StatusSeeOther)
}

// Webhook serves POST /payment/<provider>/webhook. The raw body is what
// the signature covers, so it is read before any decoding.
func (h *Handler) Webhook(provider domain.ProviderCode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.handleWebhook(w, r, provider)
	}
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request, provider domain.ProviderCode) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "payments.webhook", "Notification body too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.Invalid("payments.webhook", "Unreadable notification body"))
		return
	}

	out, err := h.svc.HandleWebhook(r.Context(), provider, body, r.Header.Get(pse.SignatureHeader))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).InfoContext(r.Context(), "Webhook processed",
		"provider", provider,
		"reference", out.Transaction.Reference,
		"from", out.From,
		"to", out.To,
		"changed", out.Changed,
	)
	handler.WriteJSON(w, r, http.StatusOK, map[string]any{
		"reference": out.Transaction.Reference,
		"state":     out.Transaction.State,
		"changed":   out.Changed,
	})
}
