package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/telemetry"
)

// Service composes partner notifications and hands them to a Sender.
// It satisfies payment.Notifier.
type Service struct {
	sender        Sender
	baseURL       string
	templateCache *template.Template
	logger        *slog.Logger
}

// NewService creates a notification service. baseURL is the shop root used
// for links back to the portal.
func NewService(sender Sender, baseURL string, logger *slog.Logger) (*Service, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		sender:        sender,
		baseURL:       strings.TrimRight(baseURL, "/"),
		templateCache: tmpl,
		logger:        logger.With("component", "email"),
	}, nil
}

// NotifyCancelled emails the partner that a transaction was cancelled.
func (s *Service) NotifyCancelled(ctx context.Context, partner *domain.Partner, tx *domain.Transaction) error {
	const kind = "transaction_cancelled"

	if partner == nil || partner.Email == "" {
		telemetry.Payments.Email(kind, ErrNoRecipient)
		return ErrNoRecipient
	}

	data := TransactionCancelledEmail{
		PartnerName: partner.FullName(),
		Reference:   tx.Reference,
		Amount:      tx.Amount.StringFixed(2),
		Currency:    tx.Currency,
		Method:      string(tx.Method),
		Message:     tx.StateMessage,
		At:          tx.UpdatedAt,
		RetryURL:    s.baseURL + "/my/invoices/overdue",
	}

	err := s.send(ctx, []string{partner.Email}, data, map[string]string{ReferenceHeader: tx.Reference})
	telemetry.Payments.Email(kind, err)
	if err != nil {
		return fmt.Errorf("failed to send cancellation email: %w", err)
	}
	s.logger.InfoContext(ctx, "Cancellation email sent", "reference", tx.Reference, "partner_id", partner.ID)
	return nil
}

func (s *Service) send(ctx context.Context, to []string, data EmailTemplate, headers map[string]string) error {
	htmlBody, textBody, err := s.renderTemplate(data.TemplateName(), data)
	if err != nil {
		return err
	}

	_, err = s.sender.Send(ctx, &Email{
		To:       to,
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
		Headers:  headers,
	})
	return err
}

func (s *Service) renderTemplate(templateName string, data interface{}) (string, string, error) {
	var htmlBuf bytes.Buffer
	if err := s.templateCache.ExecuteTemplate(&htmlBuf, templateName, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	htmlBody := htmlBuf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText flattens rendered HTML into the text alternative. Block
// ends become line breaks and blank lines are dropped.
func generatePlainText(html string) string {
	text := html

	for _, tag := range []string{"<br>", "<br/>", "<br />", "</div>"} {
		text = strings.ReplaceAll(text, tag, "\n")
	}
	for _, tag := range []string{"</p>", "</h1>", "</h2>", "</h3>"} {
		text = strings.ReplaceAll(text, tag, "\n\n")
	}

	for {
		start := strings.Index(text, "<")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], ">")
		if end < 0 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}

	text = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#34;", "\"",
		"&#39;", "'",
	).Replace(text)

	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
