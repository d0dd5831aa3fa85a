// Package logging builds the zap logger every component derives its named
// logger from.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger flavor.
type Options struct {
	// Debug lowers the level to Debug.
	Debug bool
	// Console writes human-readable lines and only warnings and errors
	// unless Debug is set. Used when the terminal is also the chat.
	Console bool
}

// New builds a production logger writing JSON to stderr. The returned level
// can be changed while the logger is in use.
func New(opts Options) (*zap.Logger, zap.AtomicLevel, error) {
	config := zap.NewProductionConfig()
	if opts.Console {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	if opts.Debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.Development = true
	}
	logger, err := config.Build()
	if err != nil {
		return nil, config.Level, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, config.Level, nil
}
