package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/msto63/minerva/pkg/core/config"
	"github.com/msto63/minerva/pkg/core/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   bool
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "minerva",
	Short: "minerva - customer registry over gRPC",
	Long: `minerva keeps a registry of customers in a SQL database and serves it
over gRPC: create, look up and delete single customers, or stream the
whole registry in pages of 100.

Configuration is read from a TOML file (--config, MINERVA_CONFIG or
./configs/config.toml), then from .env files and the environment
(MINERVA_*, GRPC_PORT, DATABASE_URL), then from flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, text)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	var err error
	if cfgFile != "" {
		appConfig, err = config.Load(cfgFile)
	} else {
		appConfig, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	v := config.NewViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	appConfig.Overlay(v)

	level := appConfig.Log.Level
	if verbose {
		level = "debug"
	}
	logging.Configure(level, appConfig.Log.Format, os.Stderr)

	return nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
