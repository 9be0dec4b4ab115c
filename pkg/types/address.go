package types

import "strings"

// Address is the immutable shipping/billing snapshot stored on an order.
// The gateway-reported address overwrites it once checkout completes.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// IsZero reports whether no field is populated.
func (a Address) IsZero() bool {
	return a == Address{}
}

// OneLine renders the address as a single display line.
func (a Address) OneLine() string {
	parts := []string{}
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
