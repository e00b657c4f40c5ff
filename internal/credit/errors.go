package credit

import (
	"github.com/rutavity/payments/internal/domain"
)

var (
	ErrInsufficientCredit = domain.Errorf(domain.EINVALID, "", "Insufficient credit to complete this payment")
	ErrPortfolioBlocked   = domain.Errorf(domain.EINVALID, "", "Your portfolio is blocked")
	ErrHierarchyCycle     = domain.Errorf(domain.EINTEGRITY, "", "Contact hierarchy contains a cycle")
	ErrHierarchyTooDeep   = domain.Errorf(domain.EINTEGRITY, "", "Contact hierarchy exceeds the maximum depth")
)

// portfolioBlocked wraps ErrPortfolioBlocked with the partner's reason,
// shown verbatim to the user.
func portfolioBlocked(p *domain.Partner) error {
	msg := domain.ErrorMessage(ErrPortfolioBlocked)
	if p.PortfolioBlockReason != "" {
		msg += ": " + p.PortfolioBlockReason
	}
	return domain.WrapError(ErrPortfolioBlocked, domain.EINVALID, "credit.check_portfolio", msg)
}
