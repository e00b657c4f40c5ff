package payment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/payment"
)

func methodCodes(rules []payment.MethodRule) []domain.MethodCode {
	var out []domain.MethodCode
	for _, r := range rules {
		out = append(out, r.Method)
	}
	return out
}

func TestMethodsFor(t *testing.T) {
	tests := []struct {
		name     string
		provider *domain.Provider
		want     []domain.MethodCode
	}{
		{
			name:     "nil provider",
			provider: nil,
			want:     nil,
		},
		{
			name:     "disabled",
			provider: &domain.Provider{Code: domain.ProviderManual, State: domain.ProviderDisabled, Methods: []domain.MethodCode{domain.MethodCredit}},
			want:     nil,
		},
		{
			name:     "manual offers offline methods",
			provider: &domain.Provider{Code: domain.ProviderManual, State: domain.ProviderEnabled, Methods: []domain.MethodCode{domain.MethodPOSStore, domain.MethodCredit}},
			want:     []domain.MethodCode{domain.MethodCredit, domain.MethodPOSStore},
		},
		{
			name:     "processor cannot take credit",
			provider: &domain.Provider{Code: domain.ProviderRutavity, State: domain.ProviderTest, Methods: []domain.MethodCode{domain.MethodPSE, domain.MethodCredit}},
			want:     []domain.MethodCode{domain.MethodPSE},
		},
		{
			name:     "only enabled methods",
			provider: &domain.Provider{Code: domain.ProviderManual, State: domain.ProviderEnabled, Methods: []domain.MethodCode{domain.MethodPOSStore}},
			want:     []domain.MethodCode{domain.MethodPOSStore},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, methodCodes(payment.MethodsFor(tt.provider)))
		})
	}
}

func TestExternalMethods(t *testing.T) {
	assert.Equal(t, []domain.MethodCode{domain.MethodPSE}, payment.ExternalMethods())
}

func TestMethodsForProvider(t *testing.T) {
	f := newFixture(t)
	rules, err := f.svc.MethodsForProvider(context.Background(), domain.ProviderManual)
	require.NoError(t, err)
	assert.Equal(t, []domain.MethodCode{domain.MethodCredit, domain.MethodPOSStore}, methodCodes(rules))

	_, err = f.svc.MethodsForProvider(context.Background(), "stripe")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestInlineFormData_PSE(t *testing.T) {
	f := newFixture(t)
	p := partner(1, "Ana")
	p.DocumentType = domain.DocumentRUT
	p.DocumentNumber = "900.123.456-7"
	p.Phone = "3001234567"
	p.Street = "Cra 7 # 45-10"
	p.City = "Bogotá"
	f.store.AddPartner(p)

	data, err := f.svc.InlineFormData(context.Background(), domain.MethodPSE, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"firstName":      "Ana",
		"lastName":       "Tester",
		"email":          "p1@example.com",
		"phone":          "3001234567",
		"documentType":   "NIT",
		"address":        "Cra 7 # 45-10, Bogotá",
		"documentNumber": "900123456",
	}, data)
}

func TestInlineFormData_Anonymous(t *testing.T) {
	f := newFixture(t)
	public := partner(2, "Public user")
	public.IsPublic = true
	f.store.AddPartner(public)

	for _, id := range []int64{0, 2} {
		data, err := f.svc.InlineFormData(context.Background(), domain.MethodPSE, id)
		require.NoError(t, err)
		assert.Empty(t, data)
	}
}

func TestInlineFormData_OfflineMethods(t *testing.T) {
	f := newFixture(t)
	posCustomer(f, 70)
	f.store.AddPartner(creditPartner(71, 300000, 400000))
	f.store.AddPartner(creditPartner(72, 300000, 120000))

	data, err := f.svc.InlineFormData(context.Background(), domain.MethodPOSStore, 70)
	require.NoError(t, err)
	assert.Equal(t, []domain.POSConfig{{ID: 1, Name: "Tienda Centro"}}, data["posConfigs"])

	data, err = f.svc.InlineFormData(context.Background(), domain.MethodCredit, 72)
	require.NoError(t, err)
	assert.Equal(t, "180000.00", data["availableCredit"])

	// Negative availability is shown as zero.
	data, err = f.svc.InlineFormData(context.Background(), domain.MethodCredit, 71)
	require.NoError(t, err)
	assert.Equal(t, "0.00", data["availableCredit"])

	_, err = f.svc.InlineFormData(context.Background(), "card", 70)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
