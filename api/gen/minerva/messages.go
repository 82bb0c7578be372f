package minervapb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Customer is one registry entry
type Customer struct {
	Id         int32
	Category   int32
	Name       string
	IsBusiness bool
	Document   string
	Active     bool
	Blocked    bool
}

// NewCustomerRequest carries the caller-provided fields of a new customer
type NewCustomerRequest struct {
	Name       string
	IsBusiness bool
	Document   string
}

// CustomerIDRequest addresses a single customer
type CustomerIDRequest struct {
	Id int32
}

// CustomerPage is one page of a ListaClientes stream
type CustomerPage struct {
	Customers []*Customer
}

// Getters are nil-safe, like generated code.

func (m *Customer) GetId() int32 {
	if m == nil {
		return 0
	}
	return m.Id
}

func (m *Customer) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

func (m *NewCustomerRequest) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

func (m *Customer) GetCategory() int32 {
	if m == nil {
		return 0
	}
	return m.Category
}

func (m *Customer) GetIsBusiness() bool {
	if m == nil {
		return false
	}
	return m.IsBusiness
}

func (m *Customer) GetDocument() string {
	if m == nil {
		return ""
	}
	return m.Document
}

func (m *Customer) GetActive() bool {
	if m == nil {
		return false
	}
	return m.Active
}

func (m *Customer) GetBlocked() bool {
	if m == nil {
		return false
	}
	return m.Blocked
}

func (m *NewCustomerRequest) GetIsBusiness() bool {
	if m == nil {
		return false
	}
	return m.IsBusiness
}

func (m *NewCustomerRequest) GetDocument() string {
	if m == nil {
		return ""
	}
	return m.Document
}

func (m *CustomerIDRequest) GetId() int32 {
	if m == nil {
		return 0
	}
	return m.Id
}

func (m *CustomerPage) GetCustomers() []*Customer {
	if m == nil {
		return nil
	}
	return m.Customers
}

// Encoding

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	// int32 is sign-extended to 64 bits on the wire
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func (m *Customer) appendWire(b []byte) []byte {
	b = appendInt32(b, 1, m.Id)
	b = appendInt32(b, 2, m.Category)
	b = appendString(b, 3, m.Name)
	b = appendBool(b, 4, m.IsBusiness)
	b = appendString(b, 5, m.Document)
	b = appendBool(b, 6, m.Active)
	b = appendBool(b, 7, m.Blocked)
	return b
}

// MarshalWire encodes the message in protobuf wire format
func (m *Customer) MarshalWire() ([]byte, error) {
	return m.appendWire(nil), nil
}

// MarshalWire encodes the message in protobuf wire format
func (m *NewCustomerRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendBool(b, 2, m.IsBusiness)
	b = appendString(b, 3, m.Document)
	return b, nil
}

// MarshalWire encodes the message in protobuf wire format
func (m *CustomerIDRequest) MarshalWire() ([]byte, error) {
	return appendInt32(nil, 1, m.Id), nil
}

// MarshalWire encodes the message in protobuf wire format
func (m *CustomerPage) MarshalWire() ([]byte, error) {
	var b []byte
	for _, c := range m.Customers {
		if c == nil {
			continue
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, c.appendWire(nil))
	}
	return b, nil
}

// Decoding

// fieldFunc handles one field and returns the number of bytes consumed, or a
// negative protowire error code. ok=false means the field is unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (n int, ok bool)

func decode(msg string, b []byte, field fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%s: %w", msg, protowire.ParseError(n))
		}
		b = b[n:]

		n, ok := field(num, typ, b)
		if !ok {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%s: field %d: %w", msg, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) (int, bool) {
	if typ != protowire.VarintType {
		return 0, false
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int32(v)
	}
	return n, true
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) (int, bool) {
	if typ != protowire.VarintType {
		return 0, false
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n, true
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, bool) {
	if typ != protowire.BytesType {
		return 0, false
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n, true
}

// UnmarshalWire decodes the message, skipping unknown fields
func (m *Customer) UnmarshalWire(b []byte) error {
	*m = Customer{}
	return decode("minerva.Customer", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &m.Id)
		case 2:
			return consumeInt32(typ, b, &m.Category)
		case 3:
			return consumeString(typ, b, &m.Name)
		case 4:
			return consumeBool(typ, b, &m.IsBusiness)
		case 5:
			return consumeString(typ, b, &m.Document)
		case 6:
			return consumeBool(typ, b, &m.Active)
		case 7:
			return consumeBool(typ, b, &m.Blocked)
		}
		return 0, false
	})
}

// UnmarshalWire decodes the message, skipping unknown fields
func (m *NewCustomerRequest) UnmarshalWire(b []byte) error {
	*m = NewCustomerRequest{}
	return decode("minerva.NewCustomerRequest", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Name)
		case 2:
			return consumeBool(typ, b, &m.IsBusiness)
		case 3:
			return consumeString(typ, b, &m.Document)
		}
		return 0, false
	})
}

// UnmarshalWire decodes the message, skipping unknown fields
func (m *CustomerIDRequest) UnmarshalWire(b []byte) error {
	*m = CustomerIDRequest{}
	return decode("minerva.CustomerIDRequest", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == 1 {
			return consumeInt32(typ, b, &m.Id)
		}
		return 0, false
	})
}

// UnmarshalWire decodes the message, skipping unknown fields
func (m *CustomerPage) UnmarshalWire(b []byte) error {
	*m = CustomerPage{}
	return decode("minerva.CustomerPage", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num != 1 || typ != protowire.BytesType {
			return 0, false
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, true
		}
		c := new(Customer)
		if err := c.UnmarshalWire(v); err != nil {
			return -1, true
		}
		m.Customers = append(m.Customers, c)
		return n, true
	})
}
