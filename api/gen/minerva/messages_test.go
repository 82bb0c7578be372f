package minervapb

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestCustomer_WireLayout(t *testing.T) {
	c := &Customer{Id: 1, Name: "A", Active: true}
	b, err := c.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire() error = %v", err)
	}

	// field 1 varint 1, field 3 bytes "A", field 6 varint 1
	want := []byte{0x08, 0x01, 0x1a, 0x01, 'A', 0x30, 0x01}
	if string(b) != string(want) {
		t.Errorf("MarshalWire() = % x, want % x", b, want)
	}
}

func TestCustomer_ZeroValueIsEmpty(t *testing.T) {
	b, _ := (&Customer{}).MarshalWire()
	if len(b) != 0 {
		t.Errorf("zero Customer encodes to %d bytes, want 0", len(b))
	}
}

func TestCustomer_Decode(t *testing.T) {
	in := &Customer{
		Id:         250,
		Category:   -3,
		Name:       "Empresa S/A",
		IsBusiness: true,
		Document:   "99.999.999/9999-99",
		Active:     true,
		Blocked:    true,
	}
	b, _ := in.MarshalWire()

	var out Customer
	if err := out.UnmarshalWire(b); err != nil {
		t.Fatalf("UnmarshalWire() error = %v", err)
	}
	if out != *in {
		t.Errorf("decoded = %+v, want %+v", out, *in)
	}
}

func TestCustomer_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future field")
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	var c Customer
	if err := c.UnmarshalWire(b); err != nil {
		t.Fatalf("UnmarshalWire() error = %v", err)
	}
	if c.Id != 42 {
		t.Errorf("Id = %d, want 42", c.Id)
	}
}

func TestCustomer_TruncatedInput(t *testing.T) {
	var c Customer
	if err := c.UnmarshalWire([]byte{0x1a, 0x05, 'a'}); err == nil {
		t.Error("UnmarshalWire() should fail on truncated string")
	}
}

func TestCustomerPage_Decode(t *testing.T) {
	page := &CustomerPage{Customers: []*Customer{{Id: 2, Name: "x"}, {Id: 3}, nil, {Id: 4, Blocked: true}}}
	b, _ := page.MarshalWire()

	var out CustomerPage
	if err := out.UnmarshalWire(b); err != nil {
		t.Fatalf("UnmarshalWire() error = %v", err)
	}
	if len(out.Customers) != 3 {
		t.Fatalf("len(Customers) = %d, want 3", len(out.Customers))
	}
	for i, id := range []int32{2, 3, 4} {
		if out.Customers[i].Id != id {
			t.Errorf("Customers[%d].Id = %d, want %d", i, out.Customers[i].Id, id)
		}
	}
	if !out.Customers[2].Blocked {
		t.Error("Customers[2].Blocked = false, want true")
	}
}

func TestNewCustomerRequest_Decode(t *testing.T) {
	in := &NewCustomerRequest{Name: "Fulano de Tal", IsBusiness: false, Document: "888.888.888-88"}
	b, _ := in.MarshalWire()

	var out NewCustomerRequest
	if err := out.UnmarshalWire(b); err != nil {
		t.Fatalf("UnmarshalWire() error = %v", err)
	}
	if out != *in {
		t.Errorf("decoded = %+v, want %+v", out, *in)
	}
}

func TestCustomerIDRequest_NegativeID(t *testing.T) {
	b, _ := (&CustomerIDRequest{Id: -1}).MarshalWire()
	// negative int32 occupies ten varint bytes plus the tag
	if len(b) != 11 {
		t.Errorf("len = %d, want 11", len(b))
	}

	var out CustomerIDRequest
	if err := out.UnmarshalWire(b); err != nil {
		t.Fatalf("UnmarshalWire() error = %v", err)
	}
	if out.Id != -1 {
		t.Errorf("Id = %d, want -1", out.Id)
	}
}

func TestGetters_NilSafe(t *testing.T) {
	var c *Customer
	var p *CustomerPage
	var r *CustomerIDRequest
	if c.GetId() != 0 || c.GetName() != "" || p.GetCustomers() != nil || r.GetId() != 0 {
		t.Error("getters on nil receivers should return zero values")
	}
}
