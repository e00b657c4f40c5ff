// Package memory is an in-process payment.Store for tests and local runs.
//
// Units of work are serialized by one mutex and rolled back by restoring a
// snapshot, which is enough to exercise the locking and atomicity the
// payment core relies on.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/payment"
)

// Note is one audit entry on a transaction.
type Note struct {
	Text string
	At   time.Time
}

// Store implements payment.Store in memory.
type Store struct {
	// tx serializes units of work and writes made outside of them.
	tx sync.Mutex
	*db

	sessionsMu sync.RWMutex
	sessions   map[string]session
}

type session struct {
	partnerID int64
	expiresAt time.Time
}

var _ payment.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{db: newDB(), sessions: map[string]session{}}
}

type db struct {
	mu sync.RWMutex

	partners     map[int64]domain.Partner
	posConfigs   map[int64][]domain.POSConfig
	invoices     map[int64]domain.Invoice
	payments     []domain.InvoicePayment
	orders       map[int64]domain.SaleOrder
	providers    map[domain.ProviderCode]domain.Provider
	credentials  map[domain.ProviderCode]domain.ProviderCredentials
	transactions map[string]domain.Transaction
	notes        map[string][]Note
	nextTxID     int64
}

func newDB() *db {
	return &db{
		partners:     map[int64]domain.Partner{},
		posConfigs:   map[int64][]domain.POSConfig{},
		invoices:     map[int64]domain.Invoice{},
		orders:       map[int64]domain.SaleOrder{},
		providers:    map[domain.ProviderCode]domain.Provider{},
		credentials:  map[domain.ProviderCode]domain.ProviderCredentials{},
		transactions: map[string]domain.Transaction{},
		notes:        map[string][]Note{},
	}
}

// WithinTx runs fn as one atomic unit. Any error restores the state that
// existed before fn started.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo payment.Repository) error) error {
	s.tx.Lock()
	defer s.tx.Unlock()

	snap := s.db.snapshot()
	if err := fn(ctx, s.db); err != nil {
		s.db.restore(snap)
		return err
	}
	return nil
}

// Writes outside WithinTx wait for any running unit of work.

func (s *Store) RegisterPayment(ctx context.Context, p domain.InvoicePayment) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	return s.db.RegisterPayment(ctx, p)
}

func (s *Store) ConfirmSaleOrder(ctx context.Context, id int64, onCredit bool) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	return s.db.ConfirmSaleOrder(ctx, id, onCredit)
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	return s.db.CreateTransaction(ctx, t)
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	return s.db.UpdateTransaction(ctx, t)
}

func (s *Store) TouchPolled(ctx context.Context, reference string, at time.Time) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	return s.db.TouchPolled(ctx, reference, at)
}

func (s *Store) AddTransactionNote(ctx context.Context, reference, note string, at time.Time) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	return s.db.AddTransactionNote(ctx, reference, note, at)
}

// Seeding

func (s *Store) AddPartner(p domain.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partners[p.ID] = p
}

func (s *Store) AddPOSConfig(partnerID int64, cfg domain.POSConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posConfigs[partnerID] = append(s.posConfigs[partnerID], cfg)
}

func (s *Store) AddInvoice(inv domain.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = inv
}

func (s *Store) AddSaleOrder(o domain.SaleOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// PutProvider creates or replaces a provider and its credentials.
func (s *Store) PutProvider(p domain.Provider, creds domain.ProviderCredentials) error {
	if err := domain.ValidateProvider(&p, &creds); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Methods = append([]domain.MethodCode(nil), p.Methods...)
	s.providers[p.Code] = p
	s.credentials[p.Code] = creds
	return nil
}

// SaveProvider is PutProvider behind the same signature as the postgres
// store, so startup seeding works against either.
func (s *Store) SaveProvider(_ context.Context, p *domain.Provider, creds *domain.ProviderCredentials) error {
	if creds == nil {
		creds = &domain.ProviderCredentials{}
	}
	return s.PutProvider(*p, *creds)
}

// AddSession registers a portal session token for a partner.
func (s *Store) AddSession(token string, partnerID int64, expiresAt time.Time) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[token] = session{partnerID: partnerID, expiresAt: expiresAt}
}

// PartnerIDForSession resolves a live portal session token.
func (s *Store) PartnerIDForSession(ctx context.Context, token string, now time.Time) (int64, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || !now.Before(sess.expiresAt) {
		return 0, domain.Unauthorized("memory.partner_for_session", "Session expired or invalid")
	}
	return sess.partnerID, nil
}

// Inspection

// Payments returns the payment entries registered against an invoice.
func (s *Store) Payments(invoiceID int64) []domain.InvoicePayment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.InvoicePayment
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out
}

// Notes returns the audit trail of a transaction.
func (s *Store) Notes(reference string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Note(nil), s.notes[reference]...)
}

// Transactions returns every transaction ordered by id.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, cloneTx(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Repository

func (d *db) GetPartner(ctx context.Context, id int64) (*domain.Partner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.partners[id]
	if !ok {
		return nil, domain.NotFound("memory.get_partner", "partner", strconv.FormatInt(id, 10))
	}
	return clonePartner(p), nil
}

func (d *db) ListPartnerChildren(ctx context.Context, parentID int64) ([]domain.Partner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Partner
	for _, p := range d.partners {
		if p.ParentID != nil && *p.ParentID == parentID {
			out = append(out, *clonePartner(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *db) ListPOSConfigs(ctx context.Context, partnerID int64) ([]domain.POSConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.POSConfig{}, d.posConfigs[partnerID]...), nil
}

func (d *db) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	inv, ok := d.invoices[id]
	if !ok {
		return nil, domain.NotFound("memory.get_invoice", "invoice", strconv.FormatInt(id, 10))
	}
	return &inv, nil
}

func (d *db) ListInvoicesByPartners(ctx context.Context, partnerIDs []int64) ([]domain.Invoice, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	want := make(map[int64]bool, len(partnerIDs))
	for _, id := range partnerIDs {
		want[id] = true
	}
	var out []domain.Invoice
	for _, inv := range d.invoices {
		if want[inv.PartnerID] {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *db) RegisterPayment(ctx context.Context, p domain.InvoicePayment) error {
	const op = "memory.register_payment"

	d.mu.Lock()
	defer d.mu.Unlock()

	inv, ok := d.invoices[p.InvoiceID]
	if !ok {
		return domain.NotFound(op, "invoice", strconv.FormatInt(p.InvoiceID, 10))
	}
	if inv.Residual.LessThan(p.Amount) {
		return domain.Integrity(op, fmt.Sprintf("invoice %s residual %s is below %s", inv.Name, inv.Residual, p.Amount))
	}

	inv.Residual = inv.Residual.Sub(p.Amount)
	if inv.Residual.IsZero() {
		inv.PaymentState = domain.PaymentStatePaid
	} else {
		inv.PaymentState = domain.PaymentStatePartial
	}
	d.invoices[inv.ID] = inv
	d.payments = append(d.payments, p)

	if p.OnCredit {
		partner := d.partners[inv.PartnerID]
		partner.Credit = partner.Credit.Add(p.Amount)
		d.partners[partner.ID] = partner
	}
	return nil
}

func (d *db) GetSaleOrder(ctx context.Context, id int64) (*domain.SaleOrder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.orders[id]
	if !ok {
		return nil, domain.NotFound("memory.get_sale_order", "sale order", strconv.FormatInt(id, 10))
	}
	return &o, nil
}

func (d *db) ConfirmSaleOrder(ctx context.Context, id int64, onCredit bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.orders[id]
	if !ok {
		return domain.NotFound("memory.confirm_sale_order", "sale order", strconv.FormatInt(id, 10))
	}
	o.State = domain.SaleOrderSale
	d.orders[id] = o

	if onCredit {
		partner := d.partners[o.PartnerID]
		partner.CreditToInvoice = partner.CreditToInvoice.Add(o.Total)
		d.partners[partner.ID] = partner
	}
	return nil
}

func (d *db) GetProvider(ctx context.Context, code domain.ProviderCode) (*domain.Provider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.providers[code]
	if !ok {
		return nil, domain.NotFound("memory.get_provider", "provider", string(code))
	}
	p.Methods = append([]domain.MethodCode(nil), p.Methods...)
	return &p, nil
}

func (d *db) GetProviderCredentials(ctx context.Context, code domain.ProviderCode) (*domain.ProviderCredentials, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.credentials[code]
	if !ok {
		return nil, domain.NotFound("memory.get_provider_credentials", "provider", string(code))
	}
	return &c, nil
}

func (d *db) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.transactions[t.Reference]; exists {
		return domain.Conflict("memory.create_transaction", "reference already exists: "+t.Reference)
	}
	d.nextTxID++
	t.ID = d.nextTxID
	d.transactions[t.Reference] = cloneTx(*t)
	return nil
}

func (d *db) GetTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.transactions[reference]
	if !ok {
		return nil, domain.NotFound("memory.get_transaction", "transaction", reference)
	}
	c := cloneTx(t)
	return &c, nil
}

// LockTransaction is a plain read; the Store mutex already serializes
// units of work.
func (d *db) LockTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	return d.GetTransaction(ctx, reference)
}

func (d *db) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.transactions[t.Reference]; !ok {
		return domain.NotFound("memory.update_transaction", "transaction", t.Reference)
	}
	d.transactions[t.Reference] = cloneTx(*t)
	return nil
}

func (d *db) FindOpenTransactionForOrder(ctx context.Context, orderID int64, method domain.MethodCode) (*domain.Transaction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *domain.Transaction
	for _, t := range d.transactions {
		if t.Method != method || t.State.IsTerminal() || !containsID(t.SaleOrderIDs, orderID) {
			continue
		}
		if found == nil || t.ID > found.ID {
			c := cloneTx(t)
			found = &c
		}
	}
	if found == nil {
		return nil, domain.NotFound("memory.find_open_transaction", "transaction for order", strconv.FormatInt(orderID, 10))
	}
	return found, nil
}

func (d *db) ListPollable(ctx context.Context, f payment.PollFilter) ([]domain.Transaction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range d.transactions {
		if !containsState(f.States, t.State) {
			continue
		}
		if len(f.Methods) > 0 && !containsMethod(f.Methods, t.Method) {
			continue
		}
		if t.LastPolledAt != nil && !t.LastPolledAt.Before(f.PolledBefore) {
			continue
		}
		out = append(out, cloneTx(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (d *db) TouchPolled(ctx context.Context, reference string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.transactions[reference]
	if !ok {
		return domain.NotFound("memory.touch_polled", "transaction", reference)
	}
	if t.State.IsTerminal() {
		return nil
	}
	t.LastPolledAt = &at
	d.transactions[reference] = t
	return nil
}

func (d *db) AddTransactionNote(ctx context.Context, reference, note string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes[reference] = append(d.notes[reference], Note{Text: note, At: at})
	return nil
}

// Snapshots

func (d *db) snapshot() *db {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c := newDB()
	for k, v := range d.partners {
		c.partners[k] = v
	}
	for k, v := range d.posConfigs {
		c.posConfigs[k] = append([]domain.POSConfig(nil), v...)
	}
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	c.payments = append([]domain.InvoicePayment(nil), d.payments...)
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.providers {
		c.providers[k] = v
	}
	for k, v := range d.credentials {
		c.credentials[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = cloneTx(v)
	}
	for k, v := range d.notes {
		c.notes[k] = append([]Note(nil), v...)
	}
	c.nextTxID = d.nextTxID
	return c
}

func (d *db) restore(from *db) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partners = from.partners
	d.posConfigs = from.posConfigs
	d.invoices = from.invoices
	d.payments = from.payments
	d.orders = from.orders
	d.providers = from.providers
	d.credentials = from.credentials
	d.transactions = from.transactions
	d.notes = from.notes
	d.nextTxID = from.nextTxID
}

func cloneTx(t domain.Transaction) domain.Transaction {
	t.Allocations = append([]domain.Allocation(nil), t.Allocations...)
	t.SaleOrderIDs = append([]int64(nil), t.SaleOrderIDs...)
	if t.SubmittedAt != nil {
		at := *t.SubmittedAt
		t.SubmittedAt = &at
	}
	if t.LastPolledAt != nil {
		at := *t.LastPolledAt
		t.LastPolledAt = &at
	}
	return t
}

func clonePartner(p domain.Partner) *domain.Partner {
	if p.ParentID != nil {
		id := *p.ParentID
		p.ParentID = &id
	}
	return &p
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsState(states []domain.TransactionState, s domain.TransactionState) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func containsMethod(methods []domain.MethodCode, m domain.MethodCode) bool {
	for _, v := range methods {
		if v == m {
			return true
		}
	}
	return false
}

// Credit returns a partner's current credit balance.
func (s *Store) Credit(partnerID int64) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partners[partnerID].Credit
}
