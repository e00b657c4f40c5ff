package money

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"whole pesos", "250000", "COP", 25000000},
		{"cents", "10.55", "USD", 1055},
		{"rounds half up", "10.555", "USD", 1056},
		{"zero decimals", "1500", "CLP", 1500},
		{"unknown currency", "1.5", "XYZ", 150},
		{"lower case code", "2", "cop", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinor(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestFromMinor(t *testing.T) {
	assert.True(t, FromMinor(25000000, "COP").Equal(decimal.NewFromInt(250000)))
	assert.True(t, FromMinor(1055, "USD").Equal(decimal.RequireFromString("10.55")))
	assert.True(t, FromMinor(1500, "CLP").Equal(decimal.NewFromInt(1500)))
}

func TestAbsSum(t *testing.T) {
	got := AbsSum(decimal.NewFromInt(-100), decimal.NewFromInt(-50))
	assert.True(t, got.Equal(decimal.NewFromInt(150)))
	assert.True(t, AbsSum().IsZero())
}

func TestNewReference(t *testing.T) {
	pattern := regexp.MustCompile(`^RTV-[0-9A-F]{8}-[0-9A-F]{12}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := NewReference()
		assert.Regexp(t, pattern, ref)
		assert.False(t, seen[ref], "reference %s generated twice", ref)
		seen[ref] = true
	}
}
