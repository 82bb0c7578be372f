package server

import (
	"context"
	"io"

	pb "github.com/msto63/minerva/api/gen/minerva"
	"github.com/msto63/minerva/internal/minerva/store"
	"github.com/msto63/minerva/internal/minerva/stream"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	coreGrpc "github.com/msto63/minerva/pkg/core/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Ensure Server implements MinervaServer
var _ pb.MinervaServer = (*Server)(nil)

// Ping implements MinervaServer.Ping
func (s *Server) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.logger.Debug("Ping", "peer", coreGrpc.PeerAddress(ctx))
	return &emptypb.Empty{}, nil
}

// CreateCustomer implements MinervaServer.CreateCustomer
func (s *Server) CreateCustomer(ctx context.Context, req *pb.NewCustomerRequest) (*pb.Customer, error) {
	c, err := s.service.Create(ctx, store.NewCustomerFrom(req.GetName(), req.GetIsBusiness(), req.GetDocument()))
	if err != nil {
		return nil, s.toStatus("CreateCustomer", err)
	}
	return toProto(c), nil
}

// GetCustomer implements MinervaServer.GetCustomer
func (s *Server) GetCustomer(ctx context.Context, req *pb.CustomerIDRequest) (*pb.Customer, error) {
	c, err := s.service.Get(ctx, req.GetId())
	if err != nil {
		return nil, s.toStatus("GetCustomer", err)
	}
	return toProto(c), nil
}

// DeleteCustomer implements MinervaServer.DeleteCustomer
func (s *Server) DeleteCustomer(ctx context.Context, req *pb.CustomerIDRequest) (*emptypb.Empty, error) {
	if err := s.service.Delete(ctx, req.GetId()); err != nil {
		return nil, s.toStatus("DeleteCustomer", err)
	}
	return &emptypb.Empty{}, nil
}

// ListCustomers implements MinervaServer.ListCustomers. Pages arrive from a
// background fetch loop; if the client goes away the session is detached and
// the loop stops before its next store call.
func (s *Server) ListCustomers(_ *emptypb.Empty, srv grpc.ServerStreamingServer[pb.CustomerPage]) error {
	ctx := srv.Context()

	sess, err := s.service.List(ctx)
	if err != nil {
		return s.toStatus("ListCustomers", err)
	}
	defer sess.Detach()

	for {
		page, err := sess.Recv(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return status.FromContextError(ctxErr).Err()
			}
			return s.toStatus("ListCustomers", err)
		}

		if err := srv.Send(toProtoPage(page)); err != nil {
			s.logger.Debug("List stream send failed", "session", sess.ID(), "error", err)
			return err
		}
	}
}

// toStatus maps registry errors to gRPC status codes
func (s *Server) toStatus(method string, err error) error {
	code := mdwerrors.GetCode(err)

	switch code {
	case mdwerrors.CodeNotFound:
		return status.Error(codes.NotFound, err.Error())
	case mdwerrors.CodeConstraintViolation, mdwerrors.CodeInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case mdwerrors.CodeTimeout:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case mdwerrors.CodeUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	}

	s.logger.Error("Request failed", "method", method, "code", code.String(), "error", err)
	if code.Unavailable() {
		return status.Error(codes.Internal, "database unavailable")
	}
	return status.Error(codes.Internal, "internal error")
}

func toProto(c store.Customer) *pb.Customer {
	return &pb.Customer{
		Id:         c.ID,
		Category:   int32(c.Category),
		Name:       c.Name,
		IsBusiness: c.Business,
		Document:   c.Document,
		Active:     c.Active,
		Blocked:    c.Blocked,
	}
}

func toProtoPage(page stream.Page) *pb.CustomerPage {
	out := &pb.CustomerPage{Customers: make([]*pb.Customer, len(page))}
	for i, c := range page {
		out.Customers[i] = toProto(c)
	}
	return out
}
