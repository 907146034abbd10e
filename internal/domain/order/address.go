package order

import "strings"

// Address is the shipping destination and contact captured at checkout.
type Address struct {
	FullName    string `json:"full_name"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// Missing returns the JSON names of required fields that are blank.
// Line2 is optional.
func (a Address) Missing() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("full_name", a.FullName)
	check("line1", a.Line1)
	check("city", a.City)
	check("postal_code", a.PostalCode)
	check("country_code", a.CountryCode)
	check("phone", a.Phone)
	check("email", a.Email)
	return missing
}

func (a Address) IsComplete() bool {
	return len(a.Missing()) == 0
}
