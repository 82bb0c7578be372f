package store

// Customer is one row of the cliente table
type Customer struct {
	ID       int32  `json:"id" yaml:"id"`
	Category int16  `json:"category" yaml:"category"`
	Name     string `json:"name" yaml:"name"`
	Business bool   `json:"is_business" yaml:"is_business"`
	Document string `json:"document" yaml:"document"`
	Active   bool   `json:"active" yaml:"active"`
	Blocked  bool   `json:"blocked" yaml:"blocked"`
}

// NewCustomer holds the columns written on insert. The ID is assigned by the database.
type NewCustomer struct {
	Category int16
	Name     string
	Business bool
	Document string
	Active   bool
	Blocked  bool
}

// NewCustomerFrom builds an insert payload with the registry defaults:
// category 0, active, not blocked.
func NewCustomerFrom(name string, business bool, document string) NewCustomer {
	return NewCustomer{
		Category: 0,
		Name:     name,
		Business: business,
		Document: document,
		Active:   true,
		Blocked:  false,
	}
}
