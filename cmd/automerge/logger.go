package main

import (
	"context"
	"fmt"
	"os"

	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/optimaxdev/automerge-semantic-release/internal/cfg"
)

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func initZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	return cfg.Build()
}

// initLogger initializes the global logger and registers an exit handler that
// flushes it. fields are added to all log messages.
func initLogger(config *cfg.Config, verbose bool, fields ...zap.Field) error {
	var logLevel zapcore.Level
	if verbose {
		logLevel = zapcore.DebugLevel
	} else if err := (&logLevel).Set(config.LogLevel); err != nil {
		return fmt.Errorf("can not set log level to %q: %w", config.LogLevel, err)
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		var err error
		logger, err = initZapFormatLogger(config, logLevel)
		if err != nil {
			return fmt.Errorf("could not initialize logger: %w", err)
		}
	default:
		return fmt.Errorf("unsupported log-format argument: %q", config.LogFormat)
	}

	logger = logger.Named("main").With(fields...)
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})

	return nil
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}
