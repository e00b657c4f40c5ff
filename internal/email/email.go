package email

import "context"

// ReferenceHeader carries the transaction reference so support can match a
// bounced notification to its payment.
const ReferenceHeader = "X-Rutavity-Reference"

// Email represents an email message to be sent.
type Email struct {
	To       []string          // Recipient email addresses
	From     string            // Sender address, empty for the configured default
	Subject  string            // Email subject
	TextBody string            // Plain text body
	HTMLBody string            // HTML body (optional)
	Headers  map[string]string // Custom headers (optional)
}

// Sender delivers a message and returns the provider message id if any.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}
