// Package zaplog routes set diagnostics to a zap logger.
package zaplog

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/activity"
)

// Logger implements opts.EvaluatorLogger and opts.PersistenceLogger, and can
// act as an activity hook. Failures are logged at Error, persistence calls at
// Info and evaluations at Debug.
type Logger struct {
	logger *zap.Logger
}

// New wraps logger. A nil logger discards everything.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// SetOptions returns the set options that install l for both evaluator and
// persistence logging.
func (l *Logger) SetOptions() []opts.SetOption {
	return []opts.SetOption{
		opts.WithEvaluatorLogger(l),
		opts.WithPersistenceLogger(l),
	}
}

// LogEvaluation implements opts.EvaluatorLogger.
func (l *Logger) LogEvaluation(event opts.EvaluatorLogEvent) {
	fields := []zap.Field{
		zap.String("engine", event.Engine),
		zap.String("expr", event.Expr),
		zap.Duration("duration", event.Duration),
	}
	if event.Set != "" {
		fields = append(fields, zap.String("set", event.Set))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Rule {
		fields = append(fields, zap.Bool("rule", true))
	}
	if event.Err != nil {
		l.logger.Error("opts: evaluation failed", append(fields, zap.Error(event.Err))...)
		return
	}
	l.logger.Debug("opts: evaluated", fields...)
}

// LogPersistence implements opts.PersistenceLogger.
func (l *Logger) LogPersistence(event opts.PersistenceLogEvent) {
	fields := []zap.Field{
		zap.String("set", event.Set),
		zap.String("operation", event.Operation),
		zap.Duration("duration", event.Duration),
	}
	if event.Provider != "" {
		fields = append(fields, zap.String("provider", event.Provider))
	}
	if event.Operation == "load" {
		fields = append(fields, zap.Bool("found", event.Found))
	}
	if len(event.FailedKeys) > 0 {
		fields = append(fields, zap.Strings("failed_keys", event.FailedKeys))
	}
	if event.Err != nil {
		l.logger.Error("opts: persistence failed", append(fields, zap.Error(event.Err))...)
		return
	}
	l.logger.Info("opts: persistence", fields...)
}

// Notify implements activity.ActivityHook.
func (l *Logger) Notify(_ context.Context, event activity.Event) error {
	if l.logger.Core().Enabled(zapcore.InfoLevel) {
		l.logger.Info("opts: activity",
			zap.String("verb", event.Verb),
			zap.String("object_type", event.ObjectType),
			zap.String("object_id", event.ObjectID),
			zap.String("channel", event.Channel),
			zap.Any("metadata", event.Metadata),
		)
	}
	return nil
}

// Level parses a level name such as "debug" or "warn". Unknown names fall
// back to info.
func Level(name string) zapcore.Level {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// NewConsole builds a development-style console logger at level.
func NewConsole(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(Level(level))
	cfg.DisableStacktrace = true
	return cfg.Build()
}
