// Package logging configures the process-wide zap logger. User-facing
// command output goes to stdout via fmt; diagnostics and warnings go here.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = newLogger()

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		// The development config cannot fail to build; fall back regardless.
		l = zap.NewNop()
	}
	return l.Sugar()
}

// Logger returns the shared sugared logger.
func Logger() *zap.SugaredLogger {
	return logger
}

// Sync flushes buffered log entries. Safe to call at process exit.
func Sync() {
	_ = logger.Sync()
}
