package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// newLogger builds the process logger. json uses the production encoder,
// console the development one; both write to stderr so the reporter owns
// stdout.
func newLogger(level, format string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flagNameLogLevel, err)
	}

	var config zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		config = zap.NewProductionConfig()
	case "console":
		config = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("--%s: unknown format %q, expected json or console", flagNameLogFormat, format)
	}
	config.Level = atomicLevel
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config.Build()
}
