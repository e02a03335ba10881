// Package observability backs the service's logging, metrics and audit hooks
// with zap and Prometheus.
package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"openbis/internal/core"
)

// NewZapLogger builds a JSON production logger at the named level. An empty
// level means info.
func NewZapLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Logger adapts a zap logger to core.Logger. Arguments are alternating keys
// and values.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = Logger{}

// NewLogger wraps l.
func NewLogger(l *zap.Logger) Logger {
	return Logger{sugar: l.Sugar()}
}

func (l Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// AuditLogger writes audit entries to a dedicated zap logger.
type AuditLogger struct {
	logger *zap.Logger
}

var _ core.AuditRecorder = AuditLogger{}

// NewAuditLogger returns an AuditLogger writing through l under the name "audit".
func NewAuditLogger(l *zap.Logger) AuditLogger {
	return AuditLogger{logger: l.Named("audit")}
}

// Record implements core.AuditRecorder.
func (a AuditLogger) Record(_ context.Context, e core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", e.Operation),
		zap.String("entity", string(e.Entity)),
		zap.String("action", string(e.Action)),
		zap.String("entity_id", e.EntityID),
		zap.String("user", e.UserID),
		zap.String("status", string(e.Status)),
		zap.Duration("duration", e.Duration),
		zap.Time("timestamp", e.Timestamp),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	a.logger.Info("audit", fields...)
}
