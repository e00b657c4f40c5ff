package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoice_IsOverdue(t *testing.T) {
	bogota := time.FixedZone("COT", -5*60*60)
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	extended := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		extended *time.Time
		today    time.Time
		want     bool
	}{
		{"due today in utc", nil, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), false},
		{"due today west of utc", nil, time.Date(2026, 3, 10, 8, 0, 0, 0, bogota), false},
		{"due today late evening west of utc", nil, time.Date(2026, 3, 10, 23, 30, 0, 0, bogota), false},
		{"day after west of utc", nil, time.Date(2026, 3, 11, 0, 5, 0, 0, bogota), true},
		{"day after east of utc", nil, time.Date(2026, 3, 11, 1, 0, 0, 0, time.FixedZone("CET", 3600)), true},
		{"day before", nil, time.Date(2026, 3, 9, 23, 0, 0, 0, bogota), false},
		{"extension wins", &extended, time.Date(2026, 3, 15, 8, 0, 0, 0, bogota), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{DueDate: due, ExtendedDueDate: tt.extended}
			assert.Equal(t, tt.want, inv.IsOverdue(tt.today))
		})
	}
}
