// Package credit resolves the credit available to a partner by walking its
// contact hierarchy up to the partner holding the limit.
package credit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/money"
)

// MaxDepth bounds every walk over the hierarchy.
const MaxDepth = 16

// PartnerReader is the slice of the host store the resolver reads.
type PartnerReader interface {
	GetPartner(ctx context.Context, id int64) (*domain.Partner, error)
	ListPartnerChildren(ctx context.Context, parentID int64) ([]domain.Partner, error)
}

// Resolution is the outcome of resolving a partner's credit.
type Resolution struct {
	Partner *domain.Partner

	// Holder is the ancestor carrying the limit, nil when none was found.
	Holder *domain.Partner

	Limit     decimal.Decimal
	Group     []domain.Partner
	Exposure  decimal.Decimal
	Available decimal.Decimal
}

// Covers reports whether amount fits in the available credit.
func (r *Resolution) Covers(amount decimal.Decimal) bool {
	return r.Available.GreaterThanOrEqual(amount)
}

// GroupIDs returns the ids of the credit group members.
func (r *Resolution) GroupIDs() []int64 {
	ids := make([]int64, len(r.Group))
	for i, p := range r.Group {
		ids[i] = p.ID
	}
	return ids
}

// Resolver computes credit for partners. It holds no state beyond its
// reader, so one may be built per database transaction.
type Resolver struct {
	partners PartnerReader
}

// NewResolver creates a resolver reading through partners.
func NewResolver(partners PartnerReader) *Resolver {
	return &Resolver{partners: partners}
}

// Resolve finds the limit holder, the credit group and its exposure.
func (r *Resolver) Resolve(ctx context.Context, partnerID int64) (*Resolution, error) {
	chain, err := r.ancestors(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Partner: &chain[0], Limit: decimal.Zero}
	for i := range chain {
		p := &chain[i]
		if p.UsePartnerCreditLimit && p.CreditLimit.IsPositive() {
			res.Holder = p
			res.Limit = p.CreditLimit
			break
		}
	}

	if res.Holder == nil {
		res.Group = []domain.Partner{*res.Partner}
	} else {
		res.Group, err = r.descendants(ctx, *res.Holder)
		if err != nil {
			return nil, err
		}
	}

	res.Exposure = Exposure(res.Group)
	res.Available = res.Limit.Sub(res.Exposure)
	return res, nil
}

// AvailableCredit returns the resolved limit minus group exposure. The value
// may be negative; callers treat negative as zero.
func (r *Resolver) AvailableCredit(ctx context.Context, partnerID int64) (decimal.Decimal, error) {
	res, err := r.Resolve(ctx, partnerID)
	if err != nil {
		return decimal.Zero, err
	}
	return res.Available, nil
}

// HasCredit reports whether the partner can spend amount on credit.
func (r *Resolver) HasCredit(ctx context.Context, partnerID int64, amount decimal.Decimal) (bool, error) {
	res, err := r.Resolve(ctx, partnerID)
	if err != nil {
		return false, err
	}
	return res.Covers(amount), nil
}

// CheckPortfolio fails when the partner or any ancestor is portfolio-blocked.
// The first blocked contact walking upward supplies the reason.
func (r *Resolver) CheckPortfolio(ctx context.Context, partnerID int64) error {
	chain, err := r.ancestors(ctx, partnerID)
	if err != nil {
		return err
	}
	for i := range chain {
		if chain[i].PortfolioBlocked {
			return portfolioBlocked(&chain[i])
		}
	}
	return nil
}

// Exposure is |Σ credit| + |Σ credit_to_invoice| over the group.
func Exposure(group []domain.Partner) decimal.Decimal {
	credits := make([]decimal.Decimal, len(group))
	toInvoice := make([]decimal.Decimal, len(group))
	for i, p := range group {
		credits[i] = p.Credit
		toInvoice[i] = p.CreditToInvoice
	}
	return money.AbsSum(credits...).Add(money.AbsSum(toInvoice...))
}

// ancestors returns the partner followed by its parents, nearest first.
func (r *Resolver) ancestors(ctx context.Context, partnerID int64) ([]domain.Partner, error) {
	const op = "credit.ancestors"

	seen := make(map[int64]bool)
	var chain []domain.Partner

	id := partnerID
	for {
		if seen[id] {
			return nil, domain.WrapError(ErrHierarchyCycle, domain.EINTEGRITY, op,
				fmt.Sprintf("contact %d appears twice above contact %d", id, partnerID))
		}
		if len(chain) >= MaxDepth {
			return nil, domain.WrapError(ErrHierarchyTooDeep, domain.EINTEGRITY, op,
				fmt.Sprintf("contact %d has more than %d ancestors", partnerID, MaxDepth))
		}
		seen[id] = true

		p, err := r.partners.GetPartner(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *p)

		if p.ParentID == nil {
			return chain, nil
		}
		id = *p.ParentID
	}
}

// descendants returns the holder and every contact below it.
func (r *Resolver) descendants(ctx context.Context, holder domain.Partner) ([]domain.Partner, error) {
	const op = "credit.descendants"

	seen := map[int64]bool{holder.ID: true}
	group := []domain.Partner{holder}
	level := []int64{holder.ID}

	for depth := 0; len(level) > 0; depth++ {
		if depth >= MaxDepth {
			return nil, domain.WrapError(ErrHierarchyTooDeep, domain.EINTEGRITY, op,
				fmt.Sprintf("contact %d has descendants deeper than %d levels", holder.ID, MaxDepth))
		}

		var next []int64
		for _, parentID := range level {
			children, err := r.partners.ListPartnerChildren(ctx, parentID)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if seen[c.ID] {
					return nil, domain.WrapError(ErrHierarchyCycle, domain.EINTEGRITY, op,
						fmt.Sprintf("contact %d is reachable twice below contact %d", c.ID, holder.ID))
				}
				seen[c.ID] = true
				group = append(group, c)
				next = append(next, c.ID)
			}
		}
		level = next
	}

	return group, nil
}
