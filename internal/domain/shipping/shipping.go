// Package shipping prices delivery by destination country. There are two
// flat tiers, domestic and international, and nothing is charged until a
// country is known.
package shipping

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Policy struct {
	DomesticCountry  string
	DomesticFee      decimal.Decimal
	InternationalFee decimal.Decimal
}

// DefaultPolicy charges 5 within GB and 35 everywhere else.
var DefaultPolicy = Policy{
	DomesticCountry:  "GB",
	DomesticFee:      decimal.NewFromInt(5),
	InternationalFee: decimal.NewFromInt(35),
}

type Quote struct {
	CountryCode string          `json:"country_code"`
	Fee         decimal.Decimal `json:"fee"`
}

func normalize(countryCode string) string {
	return strings.ToUpper(strings.TrimSpace(countryCode))
}

func (p Policy) Fee(countryCode string) decimal.Decimal {
	switch code := normalize(countryCode); {
	case code == "":
		return decimal.Zero
	case code == normalize(p.DomesticCountry):
		return p.DomesticFee
	default:
		return p.InternationalFee
	}
}

func (p Policy) Quote(countryCode string) Quote {
	return Quote{CountryCode: normalize(countryCode), Fee: p.Fee(countryCode)}
}

// ComputeFee applies DefaultPolicy.
func ComputeFee(countryCode string) decimal.Decimal {
	return DefaultPolicy.Fee(countryCode)
}
