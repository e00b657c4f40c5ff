package email

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}).ParseFS(templateFS, "templates/*.html")
}

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// TransactionCancelledEmail tells a partner their payment did not go through.
type TransactionCancelledEmail struct {
	PartnerName string
	Reference   string
	Amount      string
	Currency    string
	Method      string
	Message     string
	At          time.Time
	RetryURL    string
}

func (e TransactionCancelledEmail) Subject() string {
	return "Payment " + e.Reference + " was not completed"
}

func (e TransactionCancelledEmail) TemplateName() string {
	return "transaction_cancelled.html"
}
