package logger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger for the application.
type Logger struct {
	*zap.Logger
}

// New creates a logger configured for the given environment and level.
// An empty level keeps the environment default.
func New(env, level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = zap.NewProductionEncoderConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = env == "production"

	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logger: parse level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	lg, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logger: build failed: %w", err)
	}

	return &Logger{Logger: lg}, nil
}

// Named returns a child logger for a component.
func (l *Logger) Named(component string) *zap.Logger {
	return l.Logger.Named(component)
}

// WithTrace returns lg annotated with the trace and span ids carried by ctx,
// or lg itself when ctx holds no valid span.
func WithTrace(ctx context.Context, lg *zap.Logger) *zap.Logger {
	if ctx == nil {
		return lg
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return lg
	}
	return lg.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}
