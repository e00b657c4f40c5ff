package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/rutavity/payments/internal/domain"
)

const invoiceColumns = `id, name, partner_id, state, payment_state, currency, residual::text, due_date, extended_due_date`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	var state, paymentState string
	err := row.Scan(&inv.ID, &inv.Name, &inv.PartnerID, &state, &paymentState, &inv.Currency,
		&inv.Residual, &inv.DueDate, &inv.ExtendedDueDate)
	inv.State = domain.InvoiceState(state)
	inv.PaymentState = domain.PaymentState(paymentState)
	return inv, err
}

const getInvoice = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(q.db.QueryRow(ctx, getInvoice, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("postgres.get_invoice", "invoice", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return &inv, nil
}

const listInvoicesByPartners = `SELECT ` + invoiceColumns + ` FROM invoices WHERE partner_id = ANY($1::bigint[]) ORDER BY id`

func (q *Queries) ListInvoicesByPartners(ctx context.Context, partnerIDs []int64) ([]domain.Invoice, error) {
	if len(partnerIDs) == 0 {
		return nil, nil
	}
	rows, err := q.db.Query(ctx, listInvoicesByPartners, partnerIDs)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Invoice, error) {
		return scanInvoice(r)
	})
}

const lockInvoice = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

const lowerInvoiceResidual = `
UPDATE invoices
SET residual = residual - $2::numeric,
    payment_state = CASE WHEN residual - $2::numeric = 0 THEN $3::text ELSE $4::text END
WHERE id = $1`

const insertInvoicePayment = `
INSERT INTO invoice_payments (invoice_id, reference, method, amount, on_credit)
VALUES ($1, $2, $3, $4::numeric, $5)`

// RegisterPayment posts a payment entry against a locked invoice. It must
// run inside a transaction for the row lock to hold.
func (q *Queries) RegisterPayment(ctx context.Context, p domain.InvoicePayment) error {
	const op = "postgres.register_payment"

	inv, err := scanInvoice(q.db.QueryRow(ctx, lockInvoice, p.InvoiceID))
	if err != nil {
		if isNoRows(err) {
			return domain.NotFound(op, "invoice", strconv.FormatInt(p.InvoiceID, 10))
		}
		return fmt.Errorf("lock invoice %d: %w", p.InvoiceID, err)
	}
	if inv.Residual.LessThan(p.Amount) {
		return domain.Integrity(op, fmt.Sprintf("invoice %s residual %s is below %s", inv.Name, inv.Residual, p.Amount))
	}

	amount := p.Amount.String()
	if _, err := q.db.Exec(ctx, lowerInvoiceResidual, inv.ID, amount,
		string(domain.PaymentStatePaid), string(domain.PaymentStatePartial)); err != nil {
		return fmt.Errorf("lower residual of invoice %d: %w", inv.ID, err)
	}
	if _, err := q.db.Exec(ctx, insertInvoicePayment, inv.ID, p.Reference, string(p.Method), amount, p.OnCredit); err != nil {
		return fmt.Errorf("insert payment on invoice %d: %w", inv.ID, err)
	}
	if p.OnCredit {
		if err := q.addPartnerCredit(ctx, inv.PartnerID, amount); err != nil {
			return fmt.Errorf("post credit for partner %d: %w", inv.PartnerID, err)
		}
	}
	return nil
}

const saleOrderColumns = `id, name, partner_id, state, currency, total::text, line_count, carrier_id`

const getSaleOrder = `SELECT ` + saleOrderColumns + ` FROM sale_orders WHERE id = $1`

func (q *Queries) GetSaleOrder(ctx context.Context, id int64) (*domain.SaleOrder, error) {
	var o domain.SaleOrder
	var state string
	err := q.db.QueryRow(ctx, getSaleOrder, id).Scan(
		&o.ID, &o.Name, &o.PartnerID, &state, &o.Currency, &o.Total, &o.LineCount, &o.CarrierID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("postgres.get_sale_order", "sale order", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get sale order %d: %w", id, err)
	}
	o.State = domain.SaleOrderState(state)
	return &o, nil
}

const confirmSaleOrder = `UPDATE sale_orders SET state = $2 WHERE id = $1 RETURNING partner_id, total::text`

// ConfirmSaleOrder marks the order sold. On credit, the order total is
// added to the partner's credit_to_invoice in the same transaction.
func (q *Queries) ConfirmSaleOrder(ctx context.Context, id int64, onCredit bool) error {
	var partnerID int64
	var total string
	err := q.db.QueryRow(ctx, confirmSaleOrder, id, string(domain.SaleOrderSale)).Scan(&partnerID, &total)
	if err != nil {
		if isNoRows(err) {
			return domain.NotFound("postgres.confirm_sale_order", "sale order", strconv.FormatInt(id, 10))
		}
		return fmt.Errorf("confirm sale order %d: %w", id, err)
	}
	if onCredit {
		if err := q.addPartnerCreditToInvoice(ctx, partnerID, total); err != nil {
			return fmt.Errorf("post order credit for partner %d: %w", partnerID, err)
		}
	}
	return nil
}
