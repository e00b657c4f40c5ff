package payment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/memory"
	"github.com/rutavity/payments/internal/payment"
	"github.com/rutavity/payments/internal/payment/mocks"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	gateway  *mocks.MockGateway
	svc      *payment.Service
	events   *recordingPublisher
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		store:    memory.New(),
		gateway:  mocks.NewMockGateway(ctrl),
		events:   &recordingPublisher{},
		notifier: &recordingNotifier{},
	}

	require.NoError(t, f.store.PutProvider(domain.Provider{
		Code:       domain.ProviderRutavity,
		Name:       "Rutavity",
		State:      domain.ProviderTest,
		CustomerID: "cust-1",
		PublicKey:  "pub-1",
		Methods:    []domain.MethodCode{domain.MethodPSE},
	}, domain.ProviderCredentials{PrivateKey: "priv-1", SigningSecret: "whsec-1"}))

	require.NoError(t, f.store.PutProvider(domain.Provider{
		Code:       domain.ProviderManual,
		Name:       "Manual",
		State:      domain.ProviderEnabled,
		CustomerID: "manual",
		PublicKey:  "manual",
		Methods:    []domain.MethodCode{domain.MethodCredit, domain.MethodPOSStore},
	}, domain.ProviderCredentials{PrivateKey: "manual", SigningSecret: "manual"}))

	var seq int
	svc, err := payment.NewService(f.store, f.gateway, payment.Options{
		BaseURL: "https://shop.example.com/",
		Now:     func() time.Time { return testNow },
		NewReference: func() string {
			seq++
			return fmt.Sprintf("RTV-%04d", seq)
		},
		Publisher: f.events,
		Notifier:  f.notifier,
	}, nil)
	require.NoError(t, err)
	f.svc = svc

	// Processor state codes map the same way the PSE adapter maps them.
	f.gateway.EXPECT().MapState(gomock.Any()).DoAndReturn(func(code string) domain.TransactionState {
		switch code {
		case "APPROVED":
			return domain.StateDone
		case "REJECTED", "FAILED":
			return domain.StateCancel
		case "PENDING", "IN_PROGRESS":
			return domain.StatePending
		}
		return domain.StateError
	}).AnyTimes()

	return f
}

// expectCreate makes the processor accept the next creation as pending.
func (f *fixture) expectCreate(externalID string) {
	f.gateway.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.GatewayRequest) (*domain.GatewayResult, error) {
			return &domain.GatewayResult{
				Code:          "PENDING",
				State:         domain.StatePending,
				TransactionID: externalID,
				RedirectURL:   "https://processor.example.com/pay/" + req.Transaction.Reference,
			}, nil
		})
}

func (f *fixture) tx(t *testing.T, reference string) *domain.Transaction {
	t.Helper()
	tx, err := f.store.GetTransaction(context.Background(), reference)
	require.NoError(t, err)
	return tx
}

func (f *fixture) invoice(t *testing.T, id int64) *domain.Invoice {
	t.Helper()
	inv, err := f.store.GetInvoice(context.Background(), id)
	require.NoError(t, err)
	return inv
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ptr(id int64) *int64 { return &id }

func partner(id int64, name string) domain.Partner {
	return domain.Partner{
		ID:             id,
		Name:           name,
		FirstName:      name,
		LastName:       "Tester",
		Email:          fmt.Sprintf("p%d@example.com", id),
		DocumentType:   domain.DocumentNationalID,
		DocumentNumber: fmt.Sprintf("10%d", id),
	}
}

func openInvoice(id, partnerID int64, residual int64) domain.Invoice {
	return domain.Invoice{
		ID:           id,
		Name:         fmt.Sprintf("INV-%d", id),
		PartnerID:    partnerID,
		State:        domain.InvoiceStatePosted,
		PaymentState: domain.PaymentStateNotPaid,
		Currency:     "COP",
		Residual:     dec(residual),
		DueDate:      testNow.AddDate(0, 0, 30),
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []payment.TransitionEvent
}

func (p *recordingPublisher) PublishTransition(_ context.Context, ev payment.TransitionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) all() []payment.TransitionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]payment.TransitionEvent(nil), p.events...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	cancelled []string
}

func (n *recordingNotifier) NotifyCancelled(_ context.Context, _ *domain.Partner, tx *domain.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, tx.Reference)
	return nil
}
