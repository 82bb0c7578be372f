package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// WireMessage is implemented by message types that encode themselves with
// protowire instead of generated reflection code.
type WireMessage interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(b []byte) error
}

// Codec replaces the default "proto" codec. Messages implementing WireMessage
// use their own encoding; everything else goes through proto.Marshal, so
// well-known types such as emptypb.Empty keep working. Both paths produce the
// protobuf wire format.
type Codec struct{}

// Name returns the content subtype handled by the codec
func (Codec) Name() string {
	return "proto"
}

// Marshal encodes v
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case WireMessage:
		return m.MarshalWire()
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("failed to marshal, message is %T, want proto.Message or WireMessage", v)
	}
}

// Unmarshal decodes data into v
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case WireMessage:
		return m.UnmarshalWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("failed to unmarshal, message is %T, want proto.Message or WireMessage", v)
	}
}

func init() {
	encoding.RegisterCodec(Codec{})
}
