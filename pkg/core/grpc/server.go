package grpc

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	"github.com/msto63/minerva/pkg/core/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var serverLogger = logging.New("grpc-server")

// ServerConfig holds gRPC server configuration
type ServerConfig struct {
	Host           string
	Port           int
	MaxRecvMsgSize int
	MaxSendMsgSize int

	// MaxConcurrentStreams caps the RPCs in flight per client connection.
	// Zero leaves the gRPC default.
	MaxConcurrentStreams uint32

	// Keepalive pings keep idle listing streams alive behind NAT
	KeepaliveInterval time.Duration
	KeepaliveTimeout  time.Duration
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "0.0.0.0",
		Port:              50051,
		MaxRecvMsgSize:    1 << 20,
		MaxSendMsgSize:    4 << 20, // a full page of 100 customers stays far below this
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
	}
}

// Address returns host:port
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server owns a grpc.Server and its listener
type Server struct {
	server *grpc.Server
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server with recovery, request id and logging
// interceptors installed. Extra options are appended.
func NewServer(cfg ServerConfig, opts ...grpc.ServerOption) *Server {
	serverOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.KeepaliveInterval,
			Timeout: cfg.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(),
			RequestIDInterceptor(),
			LoggingInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor(),
			StreamRequestIDInterceptor(),
			StreamLoggingInterceptor(),
		),
	}
	if cfg.MaxConcurrentStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams))
	}

	return &Server{
		server: grpc.NewServer(append(serverOpts, opts...)...),
		config: cfg,
	}
}

// GRPCServer returns the underlying gRPC server for service registration
func (s *Server) GRPCServer() *grpc.Server {
	return s.server
}

// listen binds the configured address once
func (s *Server) listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener, nil
	}

	l, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return nil, mdwerrors.Wrap(err, "failed to listen on "+s.config.Address()).
			WithCode(mdwerrors.CodeServiceInitialization).
			WithOperation("grpc.listen")
	}
	s.listener = l
	return l, nil
}

// Start serves on the configured address and blocks until the server stops
func (s *Server) Start() error {
	l, err := s.listen()
	if err != nil {
		return err
	}
	return s.server.Serve(l)
}

// StartAsync binds the configured address and serves in a goroutine. Bind
// errors are returned; serve errors are logged.
func (s *Server) StartAsync() error {
	l, err := s.listen()
	if err != nil {
		return err
	}
	go s.serve(l)
	return nil
}

// ServeListener serves on an externally created listener, such as bufconn
func (s *Server) ServeListener(l net.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go s.serve(l)
}

func (s *Server) serve(l net.Listener) {
	if err := s.server.Serve(l); err != nil {
		serverLogger.Error("gRPC server stopped", "address", l.Addr().String(), "error", err)
	}
}

// StopWithTimeout drains in-flight RPCs until ctx ends, then closes the
// remaining ones. It reports whether the drain completed.
func (s *Server) StopWithTimeout(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		serverLogger.Warn("Graceful stop timed out, closing open streams")
		s.server.Stop()
		<-done
		return false
	}
}

// Address returns the bound address, or the configured one before binding
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address()
}
