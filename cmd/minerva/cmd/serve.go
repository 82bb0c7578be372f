package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msto63/minerva/internal/minerva/pool"
	"github.com/msto63/minerva/internal/minerva/server"
	"github.com/msto63/minerva/internal/minerva/service"
	"github.com/msto63/minerva/internal/minerva/store"
	"github.com/msto63/minerva/internal/minerva/stream"
	"github.com/msto63/minerva/internal/minerva/telemetry"
	"github.com/msto63/minerva/pkg/core/config"
	"github.com/msto63/minerva/pkg/core/logging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC server",
	Long: `Start the minerva gRPC server.

The database is chosen from --database-url: postgres:// and postgresql://
URLs use PostgreSQL, anything else is opened as a SQLite file.

Examples:
  minerva serve
  minerva serve --port 6000 --database-url postgres://minerva@localhost/minerva
  minerva serve --init-schema --metrics-port 9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("host", "", "listen host (default 0.0.0.0)")
	f.Int("port", 0, "listen port (default 50051, env GRPC_PORT)")
	f.Int("metrics-port", 0, "serve Prometheus metrics on this port")
	f.String("database-url", "", "postgres:// URL or SQLite path (env DATABASE_URL)")
	f.Int("max-connections", 0, "maximum simultaneous database connections (default 15)")
	f.Duration("acquire-timeout", 0, "maximum wait for a free database connection (0 waits for the request)")
	f.Bool("init-schema", false, "create the customer table if it does not exist")
	f.Int("page-size", 0, "customers per list page (default 100)")
	f.Int("channel-capacity", 0, "pages buffered per list stream (default 128)")
	f.Duration("page-timeout", 0, "deadline for one page query (default 30s)")
	f.Bool("legacy-offset", true, "skip the lowest id in listings like earlier releases")
}

// serverConfig maps the application configuration onto the server
func serverConfig(cfg *config.Config) server.Config {
	storeCfg := store.DefaultConfig()
	storeCfg.PageSize = cfg.List.PageSize
	storeCfg.LegacyOffset = cfg.List.LegacyOffset

	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		DatabaseURL:    cfg.Database.URL,
		InitSchema:     cfg.Database.InitSchema,
		HealthInterval: server.DefaultConfig().HealthInterval,
		Service: service.Config{
			Pool: pool.Config{
				MaxConns:       cfg.Database.MaxConnections,
				AcquireTimeout: cfg.Database.AcquireTimeout.Duration,
			},
			Store: storeCfg,
			Stream: stream.Config{
				ChannelCapacity: cfg.List.ChannelCapacity,
				PageTimeout:     cfg.List.PageTimeout.Duration,
			},
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.New("minerva")

	if err := appConfig.Validate(); err != nil {
		printError("invalid configuration", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := telemetry.NewCollector()

	srv, err := server.New(serverConfig(appConfig), collector)
	if err != nil {
		printError("failed to create server", err)
		return err
	}

	if port := appConfig.Server.MetricsPort; port != 0 {
		reg := telemetry.NewRegistry(collector)
		go func() {
			if err := telemetry.Serve(ctx, appConfig.Server.Host, port, reg); err != nil {
				logger.Error("Metrics endpoint failed", "error", err)
			}
		}()
		logger.Info("Metrics endpoint started", "port", port)
	}

	if err := srv.StartAsync(); err != nil {
		printError("failed to start server", err)
		return err
	}
	logger.Info("minerva server started", "address", srv.Address())

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
		return err
	}

	logger.Info("minerva server stopped")
	return nil
}
