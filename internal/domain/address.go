package domain

type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	County       string `json:"county,omitempty"`
	PostalCode   string `json:"postal_code"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
}

// Billing is either "same as shipping" or a distinct address. The zero value
// means same as shipping.
type Billing struct {
	distinct bool
	address  Address
}

func SameAsShipping() Billing {
	return Billing{}
}

func DistinctBilling(addr Address) Billing {
	return Billing{distinct: true, address: addr}
}

func (b Billing) IsSameAsShipping() bool {
	return !b.distinct
}

// Address returns the distinct billing address and whether there is one.
func (b Billing) Address() (Address, bool) {
	return b.address, b.distinct
}

// Resolve returns the address billing should use for the given shipping
// address.
func (b Billing) Resolve(shipping Address) Address {
	if b.distinct {
		return b.address
	}
	return shipping
}
