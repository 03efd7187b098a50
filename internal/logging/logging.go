// Package logging builds the zap logger shared by the CLI and services.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the logger.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// Verbose forces debug level regardless of Level.
	Verbose bool
	// Format is FormatJSON (default) or FormatConsole.
	Format string
}

// New builds a logger writing to stderr so command output on stdout stays
// clean for piping.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	switch opts.Format {
	case "", FormatJSON:
		config = zap.NewProductionConfig()
	case FormatConsole:
		config = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q, must be json or console", opts.Format)
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
