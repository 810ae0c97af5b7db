package utils

import (
	"fmt"
	"os"

	"homeglow/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// InitializeLogger builds the process logger: JSON in production, colored console
// otherwise. LOG_LEVEL overrides the environment default.
func InitializeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	level := zapcore.DebugLevel
	if config.IsProduction() {
		cfg = zap.NewProductionConfig()
		level = zapcore.InfoLevel
	}

	if raw := config.AppConfig.LogLevel; raw != "" {
		if err := level.Set(raw); err != nil {
			fmt.Fprintf(os.Stderr, "unknown LOG_LEVEL %q, keeping %s\n", raw, level)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.InitialFields = map[string]interface{}{"service": "homeglow-booking"}

	built, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	Logger = built
	zap.ReplaceGlobals(Logger)
}

// GetLogger returns the process logger, building it on first use.
func GetLogger() *zap.Logger {
	if Logger == nil {
		InitializeLogger()
	}
	return Logger
}
