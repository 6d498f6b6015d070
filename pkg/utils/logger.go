package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "eventindexer"

// NewSugaredLogger creates the process logger. Verbose selects a development
// (console, debug level) logger; otherwise JSON at info level with ISO8601
// timestamps. Every entry carries the service name.
func NewSugaredLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := loggerConfig(verbose)
	l, err := cfg.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Sugar(), nil
}

func loggerConfig(verbose bool) zap.Config {
	if verbose {
		return zap.NewDevelopmentConfig()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
