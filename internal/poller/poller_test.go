package poller_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/memory"
	"github.com/rutavity/payments/internal/payment"
	"github.com/rutavity/payments/internal/poller"
	"github.com/rutavity/payments/internal/pse"
)

var t0 = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type env struct {
	store     *memory.Store
	processor *pse.MockClient
	svc       *payment.Service
	clock     *clock
	poller    *poller.Poller
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:     memory.New(),
		processor: pse.NewMockClient(),
		clock:     &clock{now: t0},
	}
	// The buyer never comes back; only the poller learns the outcome.
	e.processor.ReturnCode = ""

	require.NoError(t, e.store.PutProvider(domain.Provider{
		Code:       domain.ProviderRutavity,
		Name:       "Rutavity",
		State:      domain.ProviderTest,
		CustomerID: "cust-1",
		PublicKey:  "pub-1",
		Methods:    []domain.MethodCode{domain.MethodPSE},
	}, domain.ProviderCredentials{PrivateKey: "priv-1", SigningSecret: "whsec-1"}))

	e.store.AddPartner(domain.Partner{
		ID:             7,
		Name:           "Ana Tester",
		FirstName:      "Ana",
		LastName:       "Tester",
		Email:          "ana@example.com",
		DocumentType:   domain.DocumentNationalID,
		DocumentNumber: "107",
	})
	for _, id := range []int64{70, 71} {
		e.store.AddInvoice(domain.Invoice{
			ID:           id,
			Name:         "INV",
			PartnerID:    7,
			State:        domain.InvoiceStatePosted,
			PaymentState: domain.PaymentStateNotPaid,
			Currency:     "COP",
			Residual:     decimal.NewFromInt(40000),
			DueDate:      t0.AddDate(0, 0, 30),
		})
	}

	svc, err := payment.NewService(e.store, e.processor, payment.Options{
		BaseURL: "https://shop.example.com",
		Now:     e.clock.Now,
	}, nil)
	require.NoError(t, err)
	e.svc = svc
	e.poller = poller.New(svc, poller.Config{Concurrency: 2}, e.clock.Now, nil)
	return e
}

func (e *env) pay(t *testing.T, invoiceID int64) string {
	t.Helper()
	res, err := e.svc.PayMany(context.Background(), payment.PayManyParams{
		PartnerID:  7,
		InvoiceIDs: []int64{invoiceID},
		Provider:   domain.ProviderRutavity,
		Method:     domain.MethodPSE,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, res.Transaction.State)
	return res.Transaction.Reference
}

func TestRunOnce_SettlesApprovedTransactions(t *testing.T) {
	e := newEnv(t)
	approved := e.pay(t, 70)
	rejected := e.pay(t, 71)
	e.processor.SetState(approved, pse.CodeApproved)
	e.processor.SetState(rejected, pse.CodeRejected)

	now := t0.Add(10 * time.Minute)
	e.clock.Set(now)
	report, err := e.poller.RunOnce(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, poller.Report{Checked: 2, Changed: 2}, report)

	tx, err := e.store.GetTransaction(context.Background(), approved)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, tx.State)
	assert.True(t, tx.Settled)
	require.NotNil(t, tx.LastPolledAt)
	assert.True(t, now.Equal(*tx.LastPolledAt))

	inv, err := e.store.GetInvoice(context.Background(), 70)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatePaid, inv.PaymentState)
	assert.True(t, inv.Residual.IsZero())

	tx, err = e.store.GetTransaction(context.Background(), rejected)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancel, tx.State)

	inv, err = e.store.GetInvoice(context.Background(), 71)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateNotPaid, inv.PaymentState)
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	e := newEnv(t)
	ref := e.pay(t, 70)
	e.processor.SetState(ref, pse.CodeApproved)

	first := t0.Add(10 * time.Minute)
	e.clock.Set(first)
	_, err := e.poller.RunOnce(context.Background(), first)
	require.NoError(t, err)

	second := first.Add(10 * time.Minute)
	report, err := e.poller.RunOnce(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)

	assert.Len(t, e.store.Payments(70), 1)
}

func TestRunOnce_RespectsThreshold(t *testing.T) {
	e := newEnv(t)
	ref := e.pay(t, 70)

	now := t0.Add(10 * time.Minute)
	report, err := e.poller.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)

	// Polled two minutes ago, under the five minute threshold.
	report, err = e.poller.RunOnce(context.Background(), now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)

	tx, err := e.store.GetTransaction(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, tx.State)
}

func TestRunOnce_ExpiresStaleTransactions(t *testing.T) {
	e := newEnv(t)
	ref := e.pay(t, 70)

	now := t0.Add(25 * time.Hour)
	e.clock.Set(now)
	report, err := e.poller.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, poller.Report{Checked: 1, Changed: 1, Expired: 1}, report)

	tx, err := e.store.GetTransaction(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, tx.State)
	assert.False(t, tx.Settled)
}

func TestRunOnce_ProcessorDownIsCountedNotFatal(t *testing.T) {
	e := newEnv(t)
	ref := e.pay(t, 70)
	e.processor.QueryFunc = func(ctx context.Context, reference string) (*domain.GatewayResult, error) {
		return nil, pse.ErrProcessorUnavailable
	}

	now := t0.Add(10 * time.Minute)
	report, err := e.poller.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, poller.Report{Checked: 1, Failed: 1}, report)

	tx, err := e.store.GetTransaction(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, tx.State)
	require.NotNil(t, tx.LastPolledAt)
}

// fakeReconciler scripts Sync results per reference.
type fakeReconciler struct {
	mu       sync.Mutex
	txs      []domain.Transaction
	listErr  error
	syncErr  map[string]error
	synced   []string
	expired  []string
	lastSeen payment.PollFilter
}

func (f *fakeReconciler) Pollable(_ context.Context, filter payment.PollFilter) ([]domain.Transaction, error) {
	f.lastSeen = filter
	return f.txs, f.listErr
}

func (f *fakeReconciler) Sync(_ context.Context, reference string, _ time.Time) (*payment.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, reference)
	if err := f.syncErr[reference]; err != nil {
		return nil, err
	}
	return &payment.Outcome{From: domain.StatePending, To: domain.StateDone, Event: payment.EventApprove, Changed: true}, nil
}

func (f *fakeReconciler) Expire(_ context.Context, reference string) (*payment.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, reference)
	return &payment.Outcome{From: domain.StatePending, To: domain.StateError, Event: payment.EventExpire, Changed: true}, nil
}

func pending(ref string, submitted time.Time) domain.Transaction {
	return domain.Transaction{Reference: ref, State: domain.StatePending, SubmittedAt: &submitted, CreatedAt: submitted}
}

func TestRunOnce_ErrorsDoNotAbortBatch(t *testing.T) {
	now := t0.Add(time.Hour)
	rec := &fakeReconciler{
		txs: []domain.Transaction{
			pending("A", t0),
			pending("B", t0),
			pending("C", t0.Add(-30*time.Hour)),
		},
		syncErr: map[string]error{
			"A": errors.New("boom"),
			"C": errors.New("boom"),
		},
	}
	p := poller.New(rec, poller.Config{BatchSize: 50}, nil, nil)

	report, err := p.RunOnce(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, poller.Report{Checked: 3, Changed: 2, Expired: 1, Failed: 1}, report)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, rec.synced)
	assert.Equal(t, []string{"C"}, rec.expired)

	assert.Equal(t, 50, rec.lastSeen.Limit)
	assert.Equal(t, now.Add(-5*time.Minute), rec.lastSeen.PolledBefore)
	assert.ElementsMatch(t, []domain.TransactionState{domain.StatePending, domain.StateAuthorized}, rec.lastSeen.States)
	assert.NotContains(t, rec.lastSeen.Methods, domain.MethodCredit)
	assert.NotContains(t, rec.lastSeen.Methods, domain.MethodPOSStore)
	assert.Contains(t, rec.lastSeen.Methods, domain.MethodPSE)
}

func TestRunOnce_ListFailure(t *testing.T) {
	rec := &fakeReconciler{listErr: errors.New("db down")}
	p := poller.New(rec, poller.Config{}, nil, nil)

	_, err := p.RunOnce(context.Background(), t0)
	assert.Error(t, err)
}

func TestStart_StopsOnCancel(t *testing.T) {
	rec := &fakeReconciler{}
	p := poller.New(rec, poller.Config{Interval: time.Millisecond}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
