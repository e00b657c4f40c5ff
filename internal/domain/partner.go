package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DocumentType identifies the fiscal document a partner registered with.
type DocumentType string

const (
	DocumentNationalID    DocumentType = "national_citizen_id"
	DocumentRUT           DocumentType = "rut"
	DocumentForeignerCard DocumentType = "foreign_resident_card"
	DocumentPassport      DocumentType = "passport"
	DocumentIdentityCard  DocumentType = "id_card"
)

// Partner is a contact owned by the host. The payment core reads it and
// never writes it directly; balances only move through RegisterPayment.
type Partner struct {
	ID       int64
	ParentID *int64
	Name     string

	FirstName string
	LastName  string
	Email     string
	Phone     string
	Street    string
	City      string

	DocumentType   DocumentType
	DocumentNumber string

	// Credit configuration. A partner with UsePartnerCreditLimit and a
	// positive CreditLimit holds the ceiling for itself and its descendants.
	UsePartnerCreditLimit bool
	CreditLimit           decimal.Decimal
	Credit                decimal.Decimal
	CreditToInvoice       decimal.Decimal

	IsPOSCustomer bool

	PortfolioBlocked     bool
	PortfolioBlockReason string

	// IsPublic marks the anonymous website visitor.
	IsPublic bool
}

// FullName returns the display name used on processor requests.
func (p *Partner) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	}
	return p.Name
}

// Address joins street and city the way the processor expects it.
func (p *Partner) Address() string {
	if p.City == "" {
		return p.Street
	}
	if p.Street == "" {
		return p.City
	}
	return p.Street + ", " + p.City
}

// POSConfig is a point-of-sale location a partner may pick up orders at.
type POSConfig struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// processorDocumentCodes maps fiscal document types to PSE buyer codes.
var processorDocumentCodes = map[DocumentType]string{
	DocumentNationalID:    "CC",
	DocumentRUT:           "NIT",
	DocumentForeignerCard: "CE",
	DocumentPassport:      "PP",
	DocumentIdentityCard:  "TI",
}

// FiscalIdentity returns the processor document code and the normalized
// document number. Unknown types default to CC; a RUT loses its
// verification digit.
func (p *Partner) FiscalIdentity() (code, number string) {
	code, ok := processorDocumentCodes[p.DocumentType]
	if !ok {
		code = "CC"
	}

	number = strings.NewReplacer(".", "", " ", "").Replace(p.DocumentNumber)
	if p.DocumentType == DocumentRUT {
		if i := strings.IndexByte(number, '-'); i >= 0 {
			number = number[:i]
		}
	}
	return code, number
}

// Buyer builds the processor buyer block from the partner.
func (p *Partner) Buyer() Buyer {
	code, number := p.FiscalIdentity()
	first, last := p.FirstName, p.LastName
	if first == "" && last == "" {
		first = p.Name
	}
	return Buyer{
		FirstName:      first,
		LastName:       last,
		DocumentType:   code,
		DocumentNumber: number,
		Email:          p.Email,
		Phone:          p.Phone,
		Address:        p.Address(),
	}
}
