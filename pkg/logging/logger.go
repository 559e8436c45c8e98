// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File, when set, is an append-only log file that receives every event
	// in JSON form in addition to Output.
	File string
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs a logger built from cfg as the global zerolog logger and
// returns it. cfg.File is ignored; use SetupWithFile for that.
func Setup(cfg Config) zerolog.Logger {
	return install(cfg.Level, console(cfg))
}

// SetupWithFile is Setup plus a JSON copy of every event appended to
// cfg.File. The returned closer releases the file and is never nil.
func SetupWithFile(cfg Config) (zerolog.Logger, io.Closer, error) {
	if cfg.File == "" {
		return Setup(cfg), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	return install(cfg.Level, zerolog.MultiLevelWriter(console(cfg), f)), f, nil
}

func console(cfg Config) io.Writer {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}
	return out
}

func install(level LogLevel, w io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(level))
	logger := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// parseLevel maps a level name to zerolog; unknown names mean info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual page requests (page, per_page)
//   - Schema inference per column
//   - Partition unit paths
//
// Info: Normal operation events
//   - Stage start/finish with row counts
//   - Pages extracted with record counts
//   - Rows affected by each cleaning rule
//
// Warn: Warning conditions that don't prevent operation
//   - Empty silver directory on aggregate
//   - Rows without a state (not partitioned)
//   - Page cap reached before the empty page
//   - Ledger (Redis) errors
//
// Error: Error conditions requiring attention
//   - Stage failures (transport, integrity, internal)
//   - Scheduler retries exhausted
//
// Context Fields:
//   - stage: extract | convert | clean | aggregate
//   - run_id: identifier of one stage invocation
//   - page: page number being fetched
//   - rule: cleaning rule name
//   - affected: rows or cells changed by a rule
//   - path: artifact path
//   - error_class: transport | integrity | internal
