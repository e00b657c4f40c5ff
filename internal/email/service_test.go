package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutavity/payments/internal/domain"
)

type recordingSender struct {
	sent []*Email
	err  error
}

func (r *recordingSender) Send(_ context.Context, e *Email) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, e)
	return "msg-1", nil
}

func cancelledTx() *domain.Transaction {
	return &domain.Transaction{
		Reference:    "RTV-0042",
		Method:       domain.MethodPSE,
		Amount:       decimal.NewFromInt(125000),
		Currency:     "COP",
		State:        domain.StateCancel,
		StateMessage: "declined by the bank",
		UpdatedAt:    time.Date(2026, 3, 10, 15, 4, 0, 0, time.UTC),
	}
}

func TestNotifyCancelled(t *testing.T) {
	sender := &recordingSender{}
	svc, err := NewService(sender, "https://shop.example.com/", nil)
	require.NoError(t, err)

	partner := &domain.Partner{ID: 7, FirstName: "Ana", LastName: "Tester", Email: "ana@example.com"}
	require.NoError(t, svc.NotifyCancelled(context.Background(), partner, cancelledTx()))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ana@example.com"}, msg.To)
	assert.Equal(t, "Payment RTV-0042 was not completed", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Hello Ana Tester")
	assert.Contains(t, msg.HTMLBody, `href="https://shop.example.com/my/invoices/overdue"`)
	assert.Contains(t, msg.TextBody, "125000.00 COP by pse was cancelled on 2026-03-10 15:04")
	assert.Contains(t, msg.TextBody, "Reason: declined by the bank")
	assert.NotContains(t, msg.TextBody, "<p>")
	assert.Equal(t, "RTV-0042", msg.Headers[ReferenceHeader])
}

func TestNotifyCancelled_NoEmail(t *testing.T) {
	sender := &recordingSender{}
	svc, err := NewService(sender, "https://shop.example.com", nil)
	require.NoError(t, err)

	err = svc.NotifyCancelled(context.Background(), &domain.Partner{ID: 7}, cancelledTx())
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, sender.sent)
}

func TestNotifyCancelled_SenderFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc, err := NewService(&recordingSender{err: boom}, "https://shop.example.com", nil)
	require.NoError(t, err)

	err = svc.NotifyCancelled(context.Background(), &domain.Partner{ID: 7, Email: "ana@example.com"}, cancelledTx())
	assert.ErrorIs(t, err, boom)
}

func TestGeneratePlainText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"paragraphs", "<p>Hello Ana</p><p>Your payment failed.</p>", "Hello Ana\nYour payment failed."},
		{"line breaks", "Reference<br>RTV-1<br/>PSE<br />COP", "Reference\nRTV-1\nPSE\nCOP"},
		{"headings and nesting", "<h2>Payment</h2><div><strong>RTV-1</strong> cancelled</div>", "Payment\nRTV-1 cancelled"},
		{"entities", "Banco &amp; Cia &lt;PSE&gt; &quot;ok&quot; &#39;x&#39;", `Banco & Cia <PSE> "ok" 'x'`},
		{"links keep their text", `<a href="https://shop.example.com/my">Try again</a>`, "Try again"},
		{"whitespace lines dropped", "<p>   one   </p>\n\t<p></p>\n<p>two</p>", "one\ntwo"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generatePlainText(tt.html))
		})
	}
}
