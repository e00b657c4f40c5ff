// Package events publishes committed transaction transitions on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rutavity/payments/internal/payment"
)

// SubjectPrefix roots every transition subject: payments.transaction.<state>.
const SubjectPrefix = "payments.transaction"

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher implements payment.Publisher over a NATS connection.
type Publisher struct {
	conn   Conn
	logger *slog.Logger
}

var _ payment.Publisher = (*Publisher)(nil)

// NewPublisher wraps an established connection.
func NewPublisher(conn Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger.With("component", "events")}
}

// Subject returns the subject a transition to state is published on.
func Subject(ev payment.TransitionEvent) string {
	return SubjectPrefix + "." + string(ev.To)
}

func (p *Publisher) PublishTransition(ctx context.Context, ev payment.TransitionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode transition: %w", err)
	}
	subject := Subject(ev)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	p.logger.DebugContext(ctx, "Transition published", "subject", subject, "reference", ev.Reference)
	return nil
}

// Connect dials NATS with reconnects that never give up. The returned close
// function drains pending publishes.
func Connect(url string, logger *slog.Logger) (*nats.Conn, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("rutavity-payments"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	return nc, func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("NATS drain failed", "error", err)
		}
	}, nil
}
