// Package money holds the pure helpers shared by the payment core: currency
// minor-unit conversion and transaction reference generation.
package money

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the local currency of the PSE scheme.
const DefaultCurrency = "COP"

// currencyDecimals lists ISO 4217 minor-unit exponents for the currencies the
// shop invoices in. Unknown currencies use two decimals.
var currencyDecimals = map[string]int32{
	"COP": 2,
	"USD": 2,
	"EUR": 2,
	"MXN": 2,
	"CLP": 0,
	"JPY": 0,
}

// Decimals returns the minor-unit exponent for the currency.
func Decimals(currency string) int32 {
	if d, ok := currencyDecimals[strings.ToUpper(currency)]; ok {
		return d
	}
	return 2
}

// ToMinor converts an amount into integer minor units, rounding half away
// from zero at the currency precision.
func ToMinor(amount decimal.Decimal, currency string) int64 {
	d := Decimals(currency)
	return amount.Round(d).Shift(d).IntPart()
}

// FromMinor converts integer minor units back into an amount.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Decimals(currency))
}

// AbsSum returns the absolute value of the sum of amounts.
func AbsSum(amounts ...decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, amounts...).Abs()
}

// ReferenceGenerator produces unique transaction references.
type ReferenceGenerator func() string

// NewReference returns a processor-safe unique reference (upper-case
// alphanumerics and dashes).
func NewReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("RTV-%s-%s", id[:8], id[8:20])
}
