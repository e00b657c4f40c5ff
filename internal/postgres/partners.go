package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/rutavity/payments/internal/domain"
)

const partnerColumns = `id, parent_id, name, first_name, last_name, email, phone, street, city,
	document_type, document_number, use_partner_credit_limit, credit_limit::text, credit::text,
	credit_to_invoice::text, is_pos_customer, portfolio_blocked, portfolio_block_reason, is_public`

func scanPartner(row pgx.Row) (domain.Partner, error) {
	var p domain.Partner
	var docType string
	err := row.Scan(
		&p.ID, &p.ParentID, &p.Name, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Street, &p.City,
		&docType, &p.DocumentNumber, &p.UsePartnerCreditLimit, &p.CreditLimit, &p.Credit,
		&p.CreditToInvoice, &p.IsPOSCustomer, &p.PortfolioBlocked, &p.PortfolioBlockReason, &p.IsPublic,
	)
	p.DocumentType = domain.DocumentType(docType)
	return p, err
}

const getPartner = `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`

func (q *Queries) GetPartner(ctx context.Context, id int64) (*domain.Partner, error) {
	p, err := scanPartner(q.db.QueryRow(ctx, getPartner, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("postgres.get_partner", "partner", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get partner %d: %w", id, err)
	}
	return &p, nil
}

const listPartnerChildren = `SELECT ` + partnerColumns + ` FROM partners WHERE parent_id = $1 ORDER BY id`

func (q *Queries) ListPartnerChildren(ctx context.Context, parentID int64) ([]domain.Partner, error) {
	rows, err := q.db.Query(ctx, listPartnerChildren, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children of partner %d: %w", parentID, err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Partner, error) {
		return scanPartner(r)
	})
}

const listPOSConfigs = `
SELECT c.id, c.name
FROM pos_configs c
JOIN partner_pos_configs pc ON pc.pos_config_id = c.id
WHERE pc.partner_id = $1
ORDER BY c.id`

func (q *Queries) ListPOSConfigs(ctx context.Context, partnerID int64) ([]domain.POSConfig, error) {
	rows, err := q.db.Query(ctx, listPOSConfigs, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list pos configs of partner %d: %w", partnerID, err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.POSConfig, error) {
		var c domain.POSConfig
		err := r.Scan(&c.ID, &c.Name)
		return c, err
	})
}

const addPartnerCredit = `UPDATE partners SET credit = credit + $2::numeric WHERE id = $1`

func (q *Queries) addPartnerCredit(ctx context.Context, id int64, amount string) error {
	_, err := q.db.Exec(ctx, addPartnerCredit, id, amount)
	return err
}

const addPartnerCreditToInvoice = `UPDATE partners SET credit_to_invoice = credit_to_invoice + $2::numeric WHERE id = $1`

func (q *Queries) addPartnerCreditToInvoice(ctx context.Context, id int64, amount string) error {
	_, err := q.db.Exec(ctx, addPartnerCreditToInvoice, id, amount)
	return err
}
