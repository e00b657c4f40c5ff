package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/payment"
)

// Allocations and linked orders are folded into arrays so a transaction
// loads, and locks, in one statement.
const transactionSelect = `
SELECT t.id, t.reference, t.provider_code, t.method, t.amount::text, t.currency, t.partner_id,
       t.state, t.external_id, t.receipt_url, t.state_message, t.settled,
       t.submitted_at, t.last_polled_at, t.created_at, t.updated_at,
       COALESCE((SELECT array_agg(i.invoice_id ORDER BY i.position)
                 FROM payment_transaction_invoices i WHERE i.transaction_id = t.id), '{}'::bigint[]),
       COALESCE((SELECT array_agg(i.amount::text ORDER BY i.position)
                 FROM payment_transaction_invoices i WHERE i.transaction_id = t.id), '{}'::text[]),
       COALESCE((SELECT array_agg(o.sale_order_id ORDER BY o.sale_order_id)
                 FROM payment_transaction_orders o WHERE o.transaction_id = t.id), '{}'::bigint[])
FROM payment_transactions t`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	var provider, method, state string
	var invoiceIDs, orderIDs []int64
	var amounts []string

	err := row.Scan(&t.ID, &t.Reference, &provider, &method, &t.Amount, &t.Currency, &t.PartnerID,
		&state, &t.ExternalID, &t.ReceiptURL, &t.StateMessage, &t.Settled,
		&t.SubmittedAt, &t.LastPolledAt, &t.CreatedAt, &t.UpdatedAt,
		&invoiceIDs, &amounts, &orderIDs)
	if err != nil {
		return t, err
	}
	t.ProviderCode = domain.ProviderCode(provider)
	t.Method = domain.MethodCode(method)
	t.State = domain.TransactionState(state)
	if len(orderIDs) > 0 {
		t.SaleOrderIDs = orderIDs
	}

	if len(invoiceIDs) != len(amounts) {
		return t, fmt.Errorf("transaction %s: %d allocations with %d amounts", t.Reference, len(invoiceIDs), len(amounts))
	}
	for i, id := range invoiceIDs {
		amount, err := decimal.NewFromString(amounts[i])
		if err != nil {
			return t, fmt.Errorf("transaction %s: allocation amount %q: %w", t.Reference, amounts[i], err)
		}
		t.Allocations = append(t.Allocations, domain.Allocation{InvoiceID: id, Amount: amount})
	}
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Transaction, error) {
		return scanTransaction(r)
	})
}

const insertTransaction = `
INSERT INTO payment_transactions (reference, provider_code, method, amount, currency, partner_id,
    state, external_id, receipt_url, state_message, settled, submitted_at, last_polled_at, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id`

const insertAllocation = `
INSERT INTO payment_transaction_invoices (transaction_id, invoice_id, position, amount)
VALUES ($1, $2, $3, $4::numeric)`

const insertOrderLink = `
INSERT INTO payment_transaction_orders (transaction_id, sale_order_id) VALUES ($1, $2)`

// CreateTransaction inserts the transaction with its links. Run it inside a
// transaction so a partial insert cannot be observed.
func (q *Queries) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	const op = "postgres.create_transaction"

	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = t.CreatedAt
	}
	err := q.db.QueryRow(ctx, insertTransaction,
		t.Reference, string(t.ProviderCode), string(t.Method), t.Amount.String(), t.Currency, t.PartnerID,
		string(t.State), t.ExternalID, t.ReceiptURL, t.StateMessage, t.Settled,
		t.SubmittedAt, t.LastPolledAt, t.CreatedAt, updated,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(op, "reference already exists: "+t.Reference)
		}
		return fmt.Errorf("insert transaction %s: %w", t.Reference, err)
	}

	for i, a := range t.Allocations {
		if _, err := q.db.Exec(ctx, insertAllocation, t.ID, a.InvoiceID, i, a.Amount.String()); err != nil {
			return fmt.Errorf("link invoice %d to %s: %w", a.InvoiceID, t.Reference, err)
		}
	}
	for _, id := range t.SaleOrderIDs {
		if _, err := q.db.Exec(ctx, insertOrderLink, t.ID, id); err != nil {
			return fmt.Errorf("link sale order %d to %s: %w", id, t.Reference, err)
		}
	}
	return nil
}

const getTransaction = transactionSelect + ` WHERE t.reference = $1`

func (q *Queries) GetTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	return q.oneTransaction(ctx, "postgres.get_transaction", getTransaction, reference)
}

const lockTransaction = transactionSelect + ` WHERE t.reference = $1 FOR UPDATE OF t`

// LockTransaction reads the transaction and holds its row lock until the
// surrounding transaction ends.
func (q *Queries) LockTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	return q.oneTransaction(ctx, "postgres.lock_transaction", lockTransaction, reference)
}

func (q *Queries) oneTransaction(ctx context.Context, op, query, reference string) (*domain.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx, query, reference))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "transaction", reference)
		}
		return nil, fmt.Errorf("load transaction %s: %w", reference, err)
	}
	return &t, nil
}

const updateTransaction = `
UPDATE payment_transactions
SET state = $2, external_id = $3, receipt_url = $4, state_message = $5, settled = $6,
    submitted_at = $7, last_polled_at = $8, updated_at = $9
WHERE reference = $1`

func (q *Queries) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	tag, err := q.db.Exec(ctx, updateTransaction, t.Reference, string(t.State), t.ExternalID, t.ReceiptURL,
		t.StateMessage, t.Settled, t.SubmittedAt, t.LastPolledAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.Reference, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.update_transaction", "transaction", t.Reference)
	}
	return nil
}

var openStates = []string{
	string(domain.StateDraft),
	string(domain.StatePending),
	string(domain.StateAuthorized),
}

const findOpenTransactionForOrder = transactionSelect + `
JOIN payment_transaction_orders l ON l.transaction_id = t.id
WHERE l.sale_order_id = $1 AND t.method = $2 AND t.state = ANY($3::text[])
ORDER BY t.id DESC
LIMIT 1`

func (q *Queries) FindOpenTransactionForOrder(ctx context.Context, orderID int64, method domain.MethodCode) (*domain.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx, findOpenTransactionForOrder, orderID, string(method), openStates))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("postgres.find_open_transaction", "transaction for order", strconv.FormatInt(orderID, 10))
		}
		return nil, fmt.Errorf("find open transaction for order %d: %w", orderID, err)
	}
	return &t, nil
}

const listPollable = transactionSelect + `
WHERE t.state = ANY($1::text[])
  AND (cardinality($2::text[]) = 0 OR t.method = ANY($2::text[]))
  AND (t.last_polled_at IS NULL OR t.last_polled_at < $3)
ORDER BY t.id
LIMIT NULLIF($4::int, 0)`

func (q *Queries) ListPollable(ctx context.Context, f payment.PollFilter) ([]domain.Transaction, error) {
	states := make([]string, len(f.States))
	for i, s := range f.States {
		states[i] = string(s)
	}
	methods := make([]string, len(f.Methods))
	for i, m := range f.Methods {
		methods[i] = string(m)
	}
	rows, err := q.db.Query(ctx, listPollable, states, methods, f.PolledBefore, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list pollable transactions: %w", err)
	}
	return collectTransactions(rows)
}

const touchPolled = `
UPDATE payment_transactions SET last_polled_at = $2
WHERE reference = $1 AND state = ANY($3::text[])`

const transactionExists = `SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE reference = $1)`

// TouchPolled records a poll attempt. Terminal transactions are left alone.
func (q *Queries) TouchPolled(ctx context.Context, reference string, at time.Time) error {
	tag, err := q.db.Exec(ctx, touchPolled, reference, at, openStates)
	if err != nil {
		return fmt.Errorf("touch polled %s: %w", reference, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := q.db.QueryRow(ctx, transactionExists, reference).Scan(&exists); err != nil {
		return fmt.Errorf("check transaction %s: %w", reference, err)
	}
	if !exists {
		return domain.NotFound("postgres.touch_polled", "transaction", reference)
	}
	return nil
}

const insertNote = `
INSERT INTO payment_transaction_notes (transaction_id, note, created_at)
SELECT id, $2, $3 FROM payment_transactions WHERE reference = $1`

func (q *Queries) AddTransactionNote(ctx context.Context, reference, note string, at time.Time) error {
	tag, err := q.db.Exec(ctx, insertNote, reference, note, at)
	if err != nil {
		return fmt.Errorf("add note to %s: %w", reference, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.add_transaction_note", "transaction", reference)
	}
	return nil
}

const listNotes = `
SELECT n.note, n.created_at
FROM payment_transaction_notes n
JOIN payment_transactions t ON t.id = n.transaction_id
WHERE t.reference = $1
ORDER BY n.id`

// Note is one audit entry on a transaction.
type Note struct {
	Text string
	At   time.Time
}

// ListNotes returns the audit trail of a transaction, oldest first.
func (q *Queries) ListNotes(ctx context.Context, reference string) ([]Note, error) {
	rows, err := q.db.Query(ctx, listNotes, reference)
	if err != nil {
		return nil, fmt.Errorf("list notes of %s: %w", reference, err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (Note, error) {
		var n Note
		err := r.Scan(&n.Text, &n.At)
		return n, err
	})
}
