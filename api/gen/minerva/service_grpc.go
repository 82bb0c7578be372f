package minervapb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	Minerva_Ping_FullMethodName           = "/minerva.Minerva/Ping"
	Minerva_CreateCustomer_FullMethodName = "/minerva.Minerva/CadastraCliente"
	Minerva_GetCustomer_FullMethodName    = "/minerva.Minerva/ConsultaCliente"
	Minerva_ListCustomers_FullMethodName  = "/minerva.Minerva/ListaClientes"
	Minerva_DeleteCustomer_FullMethodName = "/minerva.Minerva/DeletaCliente"
)

// MinervaClient is the client API for the Minerva service.
type MinervaClient interface {
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	CreateCustomer(ctx context.Context, in *NewCustomerRequest, opts ...grpc.CallOption) (*Customer, error)
	GetCustomer(ctx context.Context, in *CustomerIDRequest, opts ...grpc.CallOption) (*Customer, error)
	ListCustomers(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[CustomerPage], error)
	DeleteCustomer(ctx context.Context, in *CustomerIDRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type minervaClient struct {
	cc grpc.ClientConnInterface
}

// NewMinervaClient wraps a client connection
func NewMinervaClient(cc grpc.ClientConnInterface) MinervaClient {
	return &minervaClient{cc}
}

func (c *minervaClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Minerva_Ping_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *minervaClient) CreateCustomer(ctx context.Context, in *NewCustomerRequest, opts ...grpc.CallOption) (*Customer, error) {
	out := new(Customer)
	if err := c.cc.Invoke(ctx, Minerva_CreateCustomer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *minervaClient) GetCustomer(ctx context.Context, in *CustomerIDRequest, opts ...grpc.CallOption) (*Customer, error) {
	out := new(Customer)
	if err := c.cc.Invoke(ctx, Minerva_GetCustomer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *minervaClient) ListCustomers(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[CustomerPage], error) {
	stream, err := c.cc.NewStream(ctx, &Minerva_ServiceDesc.Streams[0], Minerva_ListCustomers_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, CustomerPage]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *minervaClient) DeleteCustomer(ctx context.Context, in *CustomerIDRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Minerva_DeleteCustomer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// MinervaServer is the server API for the Minerva service.
type MinervaServer interface {
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	CreateCustomer(context.Context, *NewCustomerRequest) (*Customer, error)
	GetCustomer(context.Context, *CustomerIDRequest) (*Customer, error)
	ListCustomers(*emptypb.Empty, grpc.ServerStreamingServer[CustomerPage]) error
	DeleteCustomer(context.Context, *CustomerIDRequest) (*emptypb.Empty, error)
}

// UnimplementedMinervaServer can be embedded for forward compatibility.
type UnimplementedMinervaServer struct{}

func (UnimplementedMinervaServer) Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedMinervaServer) CreateCustomer(context.Context, *NewCustomerRequest) (*Customer, error) {
	return nil, status.Error(codes.Unimplemented, "method CadastraCliente not implemented")
}
func (UnimplementedMinervaServer) GetCustomer(context.Context, *CustomerIDRequest) (*Customer, error) {
	return nil, status.Error(codes.Unimplemented, "method ConsultaCliente not implemented")
}
func (UnimplementedMinervaServer) ListCustomers(*emptypb.Empty, grpc.ServerStreamingServer[CustomerPage]) error {
	return status.Error(codes.Unimplemented, "method ListaClientes not implemented")
}
func (UnimplementedMinervaServer) DeleteCustomer(context.Context, *CustomerIDRequest) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeletaCliente not implemented")
}

// RegisterMinervaServer registers srv on s
func RegisterMinervaServer(s grpc.ServiceRegistrar, srv MinervaServer) {
	s.RegisterService(&Minerva_ServiceDesc, srv)
}

func _Minerva_Ping_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinervaServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Minerva_Ping_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinervaServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Minerva_CreateCustomer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(NewCustomerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinervaServer).CreateCustomer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Minerva_CreateCustomer_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinervaServer).CreateCustomer(ctx, req.(*NewCustomerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Minerva_GetCustomer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CustomerIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinervaServer).GetCustomer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Minerva_GetCustomer_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinervaServer).GetCustomer(ctx, req.(*CustomerIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Minerva_DeleteCustomer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CustomerIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinervaServer).DeleteCustomer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Minerva_DeleteCustomer_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinervaServer).DeleteCustomer(ctx, req.(*CustomerIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Minerva_ListCustomers_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(MinervaServer).ListCustomers(m, &grpc.GenericServerStream[emptypb.Empty, CustomerPage]{ServerStream: stream})
}

// Minerva_ServiceDesc is the grpc.ServiceDesc for the Minerva service.
var Minerva_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "minerva.Minerva",
	HandlerType: (*MinervaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: _Minerva_Ping_Handler},
		{MethodName: "CadastraCliente", Handler: _Minerva_CreateCustomer_Handler},
		{MethodName: "ConsultaCliente", Handler: _Minerva_GetCustomer_Handler},
		{MethodName: "DeletaCliente", Handler: _Minerva_DeleteCustomer_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ListaClientes",
			Handler:       _Minerva_ListCustomers_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "api/proto/minerva.proto",
}
