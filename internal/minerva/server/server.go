package server

import (
	"context"
	"net"
	"time"

	pb "github.com/msto63/minerva/api/gen/minerva"
	"github.com/msto63/minerva/internal/minerva/service"
	"github.com/msto63/minerva/internal/minerva/telemetry"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	coreGrpc "github.com/msto63/minerva/pkg/core/grpc"
	"github.com/msto63/minerva/pkg/core/health"
	"github.com/msto63/minerva/pkg/core/logging"
	"github.com/msto63/minerva/pkg/core/version"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server is the minerva gRPC server
type Server struct {
	pb.UnimplementedMinervaServer
	service    *service.Service
	grpc       *coreGrpc.Server
	grpcHealth *grpchealth.Server
	health     *health.Registry
	logger     *logging.Logger
	config     Config
	startTime  time.Time

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// Config holds server configuration
type Config struct {
	Host string
	Port int

	// DatabaseURL is a postgres:// URL or a SQLite path
	DatabaseURL string

	// InitSchema creates the customer table on startup
	InitSchema bool

	// HealthInterval is how often the health registry is re-evaluated for
	// the gRPC health service. Zero disables the watcher.
	HealthInterval time.Duration

	Service service.Config
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           50051,
		DatabaseURL:    "./data/minerva.db",
		HealthInterval: 15 * time.Second,
		Service:        service.DefaultConfig(),
	}
}

// New creates a new minerva server
func New(cfg Config, metrics *telemetry.Collector) (*Server, error) {
	logger := logging.New("minerva-server")

	svc, err := service.Open(cfg.DatabaseURL, cfg.Service, metrics)
	if err != nil {
		return nil, mdwerrors.Wrap(err, "failed to create service").
			WithCode(mdwerrors.CodeServiceInitialization).
			WithOperation("server.New")
	}

	if cfg.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := svc.EnsureSchema(ctx); err != nil {
			svc.Close()
			return nil, mdwerrors.Wrap(err, "failed to create schema").
				WithCode(mdwerrors.CodeServiceInitialization).
				WithOperation("server.New")
		}
		logger.Info("Schema ready")
	}

	countCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	n, err := svc.Count(countCtx)
	cancel()
	if err != nil {
		logger.Warn("Customer table not readable, run with --init-schema to create it",
			"driver", svc.Driver(), "error", err)
	} else {
		logger.Info("Customer table ready", "driver", svc.Driver(), "customers", n)
	}

	grpcCfg := coreGrpc.DefaultServerConfig()
	grpcCfg.Host = cfg.Host
	grpcCfg.Port = cfg.Port

	grpcServer := coreGrpc.NewServer(grpcCfg)

	healthRegistry := health.NewRegistry("minerva", version.Service)
	healthRegistry.Register(svc.HealthChecks()...)

	server := &Server{
		service:    svc,
		grpc:       grpcServer,
		grpcHealth: grpchealth.NewServer(),
		health:     healthRegistry,
		logger:     logger,
		config:     cfg,
		startTime:  time.Now(),
	}

	pb.RegisterMinervaServer(grpcServer.GRPCServer(), server)
	healthpb.RegisterHealthServer(grpcServer.GRPCServer(), server.grpcHealth)

	return server, nil
}

func (s *Server) markServing() {
	s.setServing(healthpb.HealthCheckResponse_SERVING)

	if s.config.HealthInterval <= 0 || s.watchCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	go s.watchHealth(ctx)
}

func (s *Server) setServing(st healthpb.HealthCheckResponse_ServingStatus) {
	s.grpcHealth.SetServingStatus("", st)
	s.grpcHealth.SetServingStatus(pb.Minerva_ServiceDesc.ServiceName, st)
}

func (s *Server) watchHealth(ctx context.Context) {
	defer close(s.watchDone)

	ticker := time.NewTicker(s.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshHealth(ctx)
		}
	}
}

// RefreshHealth runs the health registry and publishes the result to the
// gRPC health service
func (s *Server) RefreshHealth(ctx context.Context) *health.Report {
	report := s.health.Check(ctx)
	if ctx.Err() != nil {
		return report
	}

	if report.Status.Serving() {
		s.setServing(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.logger.Warn("Health check failed", "status", report.Status, "checks", report.Checks)
		s.setServing(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return report
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting minerva server", "host", s.config.Host, "port", s.config.Port)
	s.markServing()
	return s.grpc.Start()
}

// StartAsync starts the server asynchronously
func (s *Server) StartAsync() error {
	s.logger.Info("Starting minerva server (async)", "host", s.config.Host, "port", s.config.Port)
	s.markServing()
	return s.grpc.StartAsync()
}

// Serve serves on an existing listener in the background
func (s *Server) Serve(l net.Listener) {
	s.markServing()
	s.grpc.ServeListener(l)
}

// Stop stops accepting calls, detaches running list streams and closes the
// database pool.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping minerva server",
		"uptime", time.Since(s.startTime).Round(time.Second),
		"active_streams", s.service.ActiveSessions(),
	)
	if s.watchCancel != nil {
		s.watchCancel()
		<-s.watchDone
	}
	s.grpcHealth.Shutdown()

	// Close the service first so open list streams end and GracefulStop
	// does not wait on them.
	err := s.service.Close()
	s.grpc.StopWithTimeout(ctx)
	return err
}

// Address returns the listen address
func (s *Server) Address() string {
	return s.grpc.Address()
}

// GRPCServer returns the underlying gRPC server
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpc.GRPCServer()
}

// HealthRegistry returns the health check registry
func (s *Server) HealthRegistry() *health.Registry {
	return s.health
}

// Service returns the registry service
func (s *Server) Service() *service.Service {
	return s.service
}
