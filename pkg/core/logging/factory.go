// ============================================================================
// minerva - customer registry over gRPC
// ============================================================================
//
// Package:     logging
// Description: Factory functions for creating service loggers
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	// Process-wide level and output, shared by all loggers created via New.
	globalLevel  = new(slog.LevelVar)
	globalMu     sync.RWMutex
	globalOutput io.Writer = os.Stdout
	globalFormat           = "json"
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service or component name, attached as the "logger" attribute
	ServiceName string

	// Log level (debug, info, warn, error)
	Level string

	// Output format: "json" or "text" (default: json)
	Format string

	// Output writer (default: stdout)
	Output io.Writer
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "json",
	}
}

// Configure sets the process-wide level, format and output used by New.
// Loggers created before the call keep their handler but follow the new level.
func Configure(level, format string, output io.Writer) {
	globalLevel.Set(ParseLevel(level).slogLevel())

	globalMu.Lock()
	defer globalMu.Unlock()
	if format != "" {
		globalFormat = format
	}
	if output != nil {
		globalOutput = output
	}
}

// NewLogger creates a logger with its own level and output
func NewLogger(cfg LoggerConfig) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(cfg.Level).slogLevel())

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	return &Logger{
		Logger: slog.New(newHandler(out, cfg.Format, lv)).With("logger", cfg.ServiceName),
		name:   cfg.ServiceName,
	}
}

// Logger wraps slog.Logger and keeps the component name. The embedded
// Debug/Info/Warn/Error methods take alternating key-value pairs.
type Logger struct {
	*slog.Logger
	name string
}

// New creates a logger bound to the process-wide configuration
func New(name string) *Logger {
	globalMu.RLock()
	out, format := globalOutput, globalFormat
	globalMu.RUnlock()

	return &Logger{
		Logger: slog.New(newHandler(out, format, globalLevel)).With("logger", name),
		name:   name,
	}
}

// Name returns the component name
func (l *Logger) Name() string {
	return l.name
}

// WithLevel returns a new logger with the specified minimum level
func (l *Logger) WithLevel(level Level) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())

	globalMu.RLock()
	out, format := globalOutput, globalFormat
	globalMu.RUnlock()

	return &Logger{
		Logger: slog.New(newHandler(out, format, lv)).With("logger", l.name),
		name:   l.name,
	}
}

// With returns a logger that always adds the given key-value pairs
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(keysAndValues...),
		name:   l.name,
	}
}

func newHandler(out io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}
