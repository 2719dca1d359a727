package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap adapts a *zap.Logger, built from zap.NewProductionConfig(), to the
// Logger interface. cortex/session (loggerFromConfig) selects this backend
// when LoggingConfig.Backend == "zap", as an alternative to the default JSON
// Production logger.
type Zap struct {
	base *zap.Logger
}

// NewZap builds a Zap-backed Logger. debug enables zapcore.DebugLevel in
// place of the production default.
func NewZap(debug bool) (*Zap, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Zap{base: base}, nil
}

func (z *Zap) WithComponent(component string) Logger {
	return &Zap{base: z.base.With(zap.String("component", component))}
}

func (z *Zap) Sync() error { return z.base.Sync() }

func (z *Zap) Debug(msg string, fields map[string]interface{}) { z.base.Debug(msg, toZapFields(fields)...) }
func (z *Zap) Info(msg string, fields map[string]interface{})  { z.base.Info(msg, toZapFields(fields)...) }
func (z *Zap) Warn(msg string, fields map[string]interface{})  { z.base.Warn(msg, toZapFields(fields)...) }
func (z *Zap) Error(msg string, fields map[string]interface{}) { z.base.Error(msg, toZapFields(fields)...) }

func (z *Zap) DebugContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withRequestID(ctx).Debug(msg, toZapFields(fields)...)
}
func (z *Zap) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withRequestID(ctx).Info(msg, toZapFields(fields)...)
}
func (z *Zap) WarnContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withRequestID(ctx).Warn(msg, toZapFields(fields)...)
}
func (z *Zap) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withRequestID(ctx).Error(msg, toZapFields(fields)...)
}

func (z *Zap) withRequestID(ctx context.Context) *zap.Logger {
	if id, ok := requestIDFromContext(ctx); ok {
		return z.base.With(zap.String("request_id", id))
	}
	return z.base
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
