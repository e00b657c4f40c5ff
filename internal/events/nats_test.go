package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/payment"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

func TestPublishTransition(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, nil)

	ev := payment.TransitionEvent{
		Reference: "RTV-0001",
		Provider:  domain.ProviderRutavity,
		Method:    domain.MethodPSE,
		PartnerID: 7,
		Amount:    "250000.00",
		Currency:  "COP",
		From:      domain.StatePending,
		To:        domain.StateDone,
		Event:     payment.EventApprove,
		At:        time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishTransition(context.Background(), ev))

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "payments.transaction.done", conn.msgs[0].subject)

	var got payment.TransitionEvent
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &got))
	assert.Equal(t, ev, got)
}

func TestPublishTransition_Error(t *testing.T) {
	boom := errors.New("nats: connection closed")
	p := NewPublisher(&fakeConn{err: boom}, nil)

	err := p.PublishTransition(context.Background(), payment.TransitionEvent{To: domain.StateCancel})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "payments.transaction.cancel")
}
