package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the default Logger implementation, backed by uber-go/zap.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	fields Fields
}

// NewZapLogger creates a production zap logger at Info level.
func NewZapLogger() *ZapLogger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Config above is static; Build only fails on invalid output paths.
		logger = zap.NewNop()
	}

	return &ZapLogger{
		logger: logger,
		level:  level,
		fields: make(Fields),
	}
}

// NewZapLoggerWith wraps an existing zap logger so applications can share
// their logging setup with this library.
func NewZapLoggerWith(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{
		logger: logger,
		level:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
		fields: make(Fields),
	}
}

func (z *ZapLogger) zapFields(err error, fields []Fields) []zap.Field {
	out := make([]zap.Field, 0, len(z.fields)+4)
	for k, v := range z.fields {
		out = append(out, zap.Any(k, v))
	}
	for _, fm := range fields {
		for k, v := range fm {
			out = append(out, zap.Any(k, v))
		}
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	return out
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	z.logger.Debug(msg, z.zapFields(nil, fields)...)
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	z.logger.Info(msg, z.zapFields(nil, fields)...)
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	z.logger.Warn(msg, z.zapFields(nil, fields)...)
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	z.logger.Error(msg, z.zapFields(err, fields)...)
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.logger.Fatal(msg, z.zapFields(err, fields)...)
}

// WithFields returns a logger with preset fields merged into every entry.
func (z *ZapLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(z.fields)+len(fields))
	for k, v := range z.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZapLogger{logger: z.logger, level: z.level, fields: merged}
}

// WithContext is a no-op for the zap logger; context extraction is left to
// application-level wrappers.
func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	return z
}

// SetLevel sets the minimum log level.
func (z *ZapLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		z.level.SetLevel(zapcore.DebugLevel)
	case InfoLevel:
		z.level.SetLevel(zapcore.InfoLevel)
	case WarnLevel:
		z.level.SetLevel(zapcore.WarnLevel)
	case ErrorLevel:
		z.level.SetLevel(zapcore.ErrorLevel)
	case FatalLevel:
		z.level.SetLevel(zapcore.FatalLevel)
	}
}
