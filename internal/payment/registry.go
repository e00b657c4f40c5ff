package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rutavity/payments/internal/credit"
	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/money"
)

// MethodRule is the closed description of how a payment method behaves.
// Every method-specific branch in the core reads one of these rows.
type MethodRule struct {
	Method      domain.MethodCode
	DisplayName string
	Providers   []domain.ProviderCode

	// ExternalLeg methods are submitted to and polled from the processor.
	ExternalLeg bool

	// OfflineTarget is the state an offline settle moves a draft to.
	OfflineTarget domain.TransactionState

	RequiresShipping    bool
	RequiresPOSCustomer bool
	RequiresCreditCheck bool
	AllowsInvoices      bool
	InlineForm          bool
}

var methodOrder = []domain.MethodCode{domain.MethodPSE, domain.MethodCredit, domain.MethodPOSStore}

var methodRules = map[domain.MethodCode]MethodRule{
	domain.MethodPSE: {
		Method:           domain.MethodPSE,
		DisplayName:      "PSE",
		Providers:        []domain.ProviderCode{domain.ProviderPSE, domain.ProviderRutavity},
		ExternalLeg:      true,
		RequiresShipping: true,
		AllowsInvoices:   true,
		InlineForm:       true,
	},
	domain.MethodCredit: {
		Method:              domain.MethodCredit,
		DisplayName:         "Pay with available credit",
		Providers:           []domain.ProviderCode{domain.ProviderManual},
		OfflineTarget:       domain.StateDone,
		RequiresShipping:    true,
		RequiresCreditCheck: true,
		AllowsInvoices:      true,
		InlineForm:          true,
	},
	domain.MethodPOSStore: {
		Method:              domain.MethodPOSStore,
		DisplayName:         "Pay at store",
		Providers:           []domain.ProviderCode{domain.ProviderManual},
		OfflineTarget:       domain.StatePending,
		RequiresPOSCustomer: true,
		InlineForm:          true,
	},
}

// RuleFor returns the rule row for a method.
func RuleFor(method domain.MethodCode) (MethodRule, bool) {
	rule, ok := methodRules[method]
	return rule, ok
}

// ExternalMethods lists methods with a processor leg.
func ExternalMethods() []domain.MethodCode {
	var out []domain.MethodCode
	for _, m := range methodOrder {
		if methodRules[m].ExternalLeg {
			out = append(out, m)
		}
	}
	return out
}

func (r MethodRule) supportedBy(code domain.ProviderCode) bool {
	for _, p := range r.Providers {
		if p == code {
			return true
		}
	}
	return false
}

// MethodsFor lists the methods a provider can take: those its code supports
// intersected with the ones enabled on it. Disabled providers have none.
func MethodsFor(provider *domain.Provider) []MethodRule {
	if provider == nil || !provider.IsActive() {
		return nil
	}
	var out []MethodRule
	for _, m := range methodOrder {
		rule := methodRules[m]
		if rule.supportedBy(provider.Code) && provider.Supports(m) {
			out = append(out, rule)
		}
	}
	return out
}

// MethodsForProvider loads the provider and lists its methods.
func (s *Service) MethodsForProvider(ctx context.Context, code domain.ProviderCode) ([]MethodRule, error) {
	provider, err := s.store.GetProvider(ctx, code)
	if err != nil {
		return nil, err
	}
	return MethodsFor(provider), nil
}

// InlineFormData returns the values a method's checkout form is prefilled
// with. Anonymous visitors always get an empty mapping.
func (s *Service) InlineFormData(ctx context.Context, method domain.MethodCode, partnerID int64) (map[string]any, error) {
	const op = "payment.inline_form"

	rule, ok := RuleFor(method)
	if !ok {
		return nil, domain.WrapError(ErrUnknownMethod, domain.EINVALID, op, domain.ErrorMessage(ErrUnknownMethod))
	}

	data := map[string]any{}
	if !rule.InlineForm || partnerID == 0 {
		return data, nil
	}

	partner, err := s.store.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if partner.IsPublic {
		return data, nil
	}

	switch method {
	case domain.MethodPSE:
		code, number := partner.FiscalIdentity()
		data["firstName"] = partner.FirstName
		data["lastName"] = partner.LastName
		data["email"] = partner.Email
		data["phone"] = partner.Phone
		data["documentType"] = code
		data["address"] = partner.Address()
		data["documentNumber"] = number

	case domain.MethodPOSStore:
		configs, err := s.store.ListPOSConfigs(ctx, partner.ID)
		if err != nil {
			return nil, err
		}
		data["posConfigs"] = configs

	case domain.MethodCredit:
		available, err := credit.NewResolver(s.store).AvailableCredit(ctx, partner.ID)
		if err != nil {
			return nil, err
		}
		if available.IsNegative() {
			available = decimal.Zero
		}
		data["availableCredit"] = available.StringFixed(money.Decimals(money.DefaultCurrency))
	}

	return data, nil
}
