// Package logging builds the process logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/symeon158/CVF-Survey-App/internal/gelf"
)

const service = "cvf-survey"

// New returns a production JSON logger. When gelfAddr is set, entries are
// also shipped to that GELF UDP endpoint.
func New(verbose bool, gelfAddr string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if gelfAddr == "" {
		return log.With(zap.String("service", service)), nil
	}

	w, err := gelf.New(gelfAddr, service)
	if err != nil {
		return nil, fmt.Errorf("gelf writer: %w", err)
	}
	gelfCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(w),
		cfg.Level,
	)
	log = log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, gelfCore)
	}))
	return log.With(zap.String("service", service)), nil
}
