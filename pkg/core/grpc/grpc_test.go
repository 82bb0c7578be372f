package grpc_test

import (
	"context"
	"testing"

	pb "github.com/msto63/minerva/api/gen/minerva"
	coreGrpc "github.com/msto63/minerva/pkg/core/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec("proto")
	if _, ok := c.(coreGrpc.Codec); !ok {
		t.Fatalf("codec for proto = %T, want coreGrpc.Codec", c)
	}
}

func TestCodec_WireMessage(t *testing.T) {
	var codec coreGrpc.Codec
	in := &pb.Customer{Id: 12, Name: "Empresa S/A", IsBusiness: true, Document: "99.999.999/9999-99", Active: true}

	b, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	out := &pb.Customer{}
	if err := codec.Unmarshal(b, out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if *out != *in {
		t.Errorf("decoded = %+v, want %+v", out, in)
	}
}

func TestCodec_ProtoFallback(t *testing.T) {
	var codec coreGrpc.Codec

	b, err := codec.Marshal(wrapperspb.String("minerva"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want, _ := proto.Marshal(wrapperspb.String("minerva"))
	if string(b) != string(want) {
		t.Errorf("Marshal() = %x, want %x", b, want)
	}

	out := &wrapperspb.StringValue{}
	if err := codec.Unmarshal(b, out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.GetValue() != "minerva" {
		t.Errorf("value = %q, want minerva", out.GetValue())
	}
}

func TestCodec_RejectsUnknownTypes(t *testing.T) {
	var codec coreGrpc.Codec

	if _, err := codec.Marshal(struct{}{}); err == nil {
		t.Error("Marshal(struct{}) error = nil")
	}
	if err := codec.Unmarshal([]byte{}, &struct{}{}); err == nil {
		t.Error("Unmarshal(struct{}) error = nil")
	}
}

func TestRequestIDInterceptor_KeepsIncomingID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(coreGrpc.RequestIDHeader, "req-42"))

	var seen string
	handler := func(ctx context.Context, req any) (any, error) {
		seen = coreGrpc.GetRequestID(ctx)
		return nil, nil
	}

	_, _ = coreGrpc.RequestIDInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/minerva.Minerva/Ping"}, handler)
	if seen != "req-42" {
		t.Errorf("request id = %q, want req-42", seen)
	}
}

func TestRequestIDInterceptor_GeneratesID(t *testing.T) {
	var seen string
	handler := func(ctx context.Context, req any) (any, error) {
		seen = coreGrpc.GetRequestID(ctx)
		return nil, nil
	}

	_, _ = coreGrpc.RequestIDInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	if len(seen) != 36 {
		t.Errorf("generated request id = %q, want a uuid", seen)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	handler := func(ctx context.Context, req any) (any, error) {
		panic("boom")
	}

	_, err := coreGrpc.RecoveryInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}

func TestPeerAddress_Unknown(t *testing.T) {
	if got := coreGrpc.PeerAddress(context.Background()); got != "0.0.0.0:0" {
		t.Errorf("PeerAddress() = %q", got)
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := coreGrpc.DefaultClientConfig("localhost:50051")
	if cfg.Target != "localhost:50051" || cfg.Timeout <= 0 || cfg.Block {
		t.Errorf("DefaultClientConfig() = %+v", cfg)
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := coreGrpc.DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 6000
	if got := cfg.Address(); got != "127.0.0.1:6000" {
		t.Errorf("Address() = %q", got)
	}

	srv := coreGrpc.NewServer(cfg)
	if got := srv.Address(); got != "127.0.0.1:6000" {
		t.Errorf("Server.Address() before listen = %q", got)
	}
}
