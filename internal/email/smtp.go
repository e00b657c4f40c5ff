package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters. Username is optional, some
// relays accept unauthenticated mail from the cluster.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// SMTPSender delivers notifications through go-mail. The TLS mode follows
// the port.
type SMTPSender struct {
	config SMTPConfig
	logger *slog.Logger
}

func NewSMTPSender(config SMTPConfig, logger *slog.Logger) *SMTPSender {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{config: config, logger: logger.With("component", "smtp")}
}

// Send dials the relay for each message and returns the Message-ID it set.
// Notifications are rare enough that a pooled connection is not worth its
// reconnect handling.
func (s *SMTPSender) Send(ctx context.Context, email *Email) (string, error) {
	msg, err := s.buildMessage(email)
	if err != nil {
		return "", err
	}

	client, err := mail.NewClient(s.config.Host, s.clientOptions()...)
	if err != nil {
		return "", fmt.Errorf("email: create SMTP client: %w", err)
	}

	reference := email.Headers[ReferenceHeader]
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "SMTP delivery failed", "reference", reference, "error", err)
		return "", fmt.Errorf("email: send: %w", err)
	}

	id := msg.GetMessageID()
	s.logger.InfoContext(ctx, "SMTP delivery accepted", "reference", reference, "message_id", id)
	return id, nil
}

func (s *SMTPSender) buildMessage(email *Email) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := s.setFrom(msg, email.From); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFromAddress, err)
	}
	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToAddress, err)
	}
	msg.Subject(email.Subject)
	msg.SetMessageID()
	msg.SetDate()

	switch {
	case email.HTMLBody != "" && email.TextBody != "":
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTMLBody)
	case email.HTMLBody != "":
		msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)
	default:
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
	}

	for key, value := range email.Headers {
		msg.SetGenHeader(mail.Header(key), value)
	}
	return msg, nil
}

// setFrom uses the configured display name only with the configured
// address. An explicit From on the message is taken as is.
func (s *SMTPSender) setFrom(msg *mail.Msg, from string) error {
	if from != "" {
		return msg.From(from)
	}
	if s.config.FromName != "" {
		return msg.FromFormat(s.config.FromName, s.config.From)
	}
	return msg.From(s.config.From)
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(s.config.Timeout),
	}

	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		// port 25 relays and the local catcher on 1025
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}
