package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	List     ListConfig     `toml:"list"`
	Log      LogConfig      `toml:"log"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig holds the gRPC listener settings
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// MetricsPort serves Prometheus metrics when non-zero
	MetricsPort int `toml:"metrics_port"`
}

// DatabaseConfig holds the store and pool settings
type DatabaseConfig struct {
	// URL is a postgres:// URL or a SQLite file path
	URL            string   `toml:"url"`
	MaxConnections int      `toml:"max_connections"`
	AcquireTimeout Duration `toml:"acquire_timeout"`
	InitSchema     bool     `toml:"init_schema"`
}

// ListConfig holds the paginated listing settings
type ListConfig struct {
	PageSize        int      `toml:"page_size"`
	ChannelCapacity int      `toml:"channel_capacity"`
	PageTimeout     Duration `toml:"page_timeout"`
	LegacyOffset    bool     `toml:"legacy_offset"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ClientConfig holds settings for the client commands
type ClientConfig struct {
	Target  string   `toml:"target"`
	Timeout Duration `toml:"timeout"`
}

// Duration is a wrapper for time.Duration that supports TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.List.LegacyOffset = true
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML file. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	// Expand environment variables in path
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, mdwerrors.Newf("config file not found: %s", path).
			WithCode(mdwerrors.CodeInvalidConfig).
			WithOperation("config.Load")
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, mdwerrors.Wrap(err, "failed to parse config").
			WithCode(mdwerrors.CodeInvalidConfig).
			WithOperation("config.Load")
	}

	// The legacy listing offset stays on unless the file turns it off.
	if !md.IsDefined("list", "legacy_offset") {
		cfg.List.LegacyOffset = true
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	return &cfg, nil
}

// LoadFromEnv loads the file named by MINERVA_CONFIG, or the first file
// found in the default locations, or falls back to Default().
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("MINERVA_CONFIG")
	if path == "" {
		defaultPaths := []string{
			"./configs/config.toml",
			"./config.toml",
			filepath.Join(os.Getenv("HOME"), ".config/minerva/config.toml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	return Load(path)
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 50051
	}

	// Database
	if c.Database.URL == "" {
		c.Database.URL = "./data/minerva.db"
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 15
	}

	// List
	if c.List.PageSize == 0 {
		c.List.PageSize = 100
	}
	if c.List.ChannelCapacity == 0 {
		c.List.ChannelCapacity = 128
	}
	if c.List.PageTimeout.Duration == 0 {
		c.List.PageTimeout.Duration = 30 * time.Second
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	// Client
	if c.Client.Target == "" {
		c.Client.Target = "localhost:50051"
	}
	if c.Client.Timeout.Duration == 0 {
		c.Client.Timeout.Duration = 10 * time.Second
	}
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Client.Target = os.ExpandEnv(c.Client.Target)
}

// NewViper returns a viper instance reading MINERVA_* variables. PORT and
// DATABASE-URL also accept the GRPC_PORT and DATABASE_URL names used by
// existing deployments.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MINERVA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("port", "MINERVA_PORT", "GRPC_PORT")
	_ = v.BindEnv("database-url", "MINERVA_DATABASE_URL", "DATABASE_URL")

	return v
}

// Overlay applies values set in v (flags or environment) on top of the
// file configuration. Keys use the flag names.
func (c *Config) Overlay(v *viper.Viper) {
	if v.IsSet("host") {
		c.Server.Host = v.GetString("host")
	}
	if v.IsSet("port") {
		c.Server.Port = v.GetInt("port")
	}
	if v.IsSet("metrics-port") {
		c.Server.MetricsPort = v.GetInt("metrics-port")
	}
	if v.IsSet("database-url") {
		c.Database.URL = v.GetString("database-url")
	}
	if v.IsSet("max-connections") {
		c.Database.MaxConnections = v.GetInt("max-connections")
	}
	if v.IsSet("acquire-timeout") {
		c.Database.AcquireTimeout.Duration = v.GetDuration("acquire-timeout")
	}
	if v.IsSet("init-schema") {
		c.Database.InitSchema = v.GetBool("init-schema")
	}
	if v.IsSet("page-size") {
		c.List.PageSize = v.GetInt("page-size")
	}
	if v.IsSet("channel-capacity") {
		c.List.ChannelCapacity = v.GetInt("channel-capacity")
	}
	if v.IsSet("page-timeout") {
		c.List.PageTimeout.Duration = v.GetDuration("page-timeout")
	}
	if v.IsSet("legacy-offset") {
		c.List.LegacyOffset = v.GetBool("legacy-offset")
	}
	if v.IsSet("log-level") {
		c.Log.Level = v.GetString("log-level")
	}
	if v.IsSet("log-format") {
		c.Log.Format = v.GetString("log-format")
	}
	if v.IsSet("target") {
		c.Client.Target = v.GetString("target")
	}
	if v.IsSet("timeout") {
		c.Client.Timeout.Duration = v.GetDuration("timeout")
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		problems = append(problems, fmt.Sprintf("server.metrics_port %d out of range", c.Server.MetricsPort))
	}
	if c.Database.URL == "" {
		problems = append(problems, "database.url is empty")
	}
	if c.Database.MaxConnections <= 0 {
		problems = append(problems, "database.max_connections must be positive")
	}
	if c.List.PageSize <= 0 {
		problems = append(problems, "list.page_size must be positive")
	}
	if c.List.ChannelCapacity <= 0 {
		problems = append(problems, "list.channel_capacity must be positive")
	}
	if c.List.PageTimeout.Duration < 0 {
		problems = append(problems, "list.page_timeout must not be negative")
	}

	if len(problems) > 0 {
		return mdwerrors.New("invalid configuration: " + strings.Join(problems, "; ")).
			WithCode(mdwerrors.CodeInvalidConfig).
			WithOperation("config.Validate")
	}
	return nil
}

// Address returns the gRPC listen address
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
