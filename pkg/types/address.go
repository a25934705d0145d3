package types

// Address is the shipping address snapshot embedded in orders and checkout
// intents. It is copied by value so later address book changes never reach
// a placed order.
type Address struct {
	Name         string  `json:"name"`
	AddressLine1 string  `json:"addressLine1"`
	AddressLine2 *string `json:"addressLine2,omitempty"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Zip          string  `json:"zip"`
	Country      string  `json:"country"`
}

// Clone returns a deep copy.
func (a Address) Clone() Address {
	out := a
	if a.AddressLine2 != nil {
		line2 := *a.AddressLine2
		out.AddressLine2 = &line2
	}
	return out
}
