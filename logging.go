package opts

import "time"

// EvaluatorLogEvent describes one evaluation. Rule marks option rule checks;
// their Target is the option key, otherwise the set name.
type EvaluatorLogEvent struct {
	Set      string
	Rule     bool
	Engine   string
	Expr     string
	Target   string
	Duration time.Duration
	Err      error
}

// PersistenceLogEvent describes one provider call made by a set. FailedKeys
// lists the keys of an aborted load.
type PersistenceLogEvent struct {
	Set        string
	Operation  string
	Provider   string
	Found      bool
	FailedKeys []string
	Duration   time.Duration
	Err        error
}

type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

type PersistenceLogger interface {
	LogPersistence(PersistenceLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// PersistenceLoggerFunc adapts a function to PersistenceLogger.
type PersistenceLoggerFunc func(PersistenceLogEvent)

func (f PersistenceLoggerFunc) LogPersistence(event PersistenceLogEvent) {
	if f != nil {
		f(event)
	}
}

// discardLogger drops every event. It backs both loggers when none is set.
type discardLogger struct{}

func (discardLogger) LogEvaluation(EvaluatorLogEvent) {}

func (discardLogger) LogPersistence(PersistenceLogEvent) {}

// WithEvaluatorLogger receives rule checks and Evaluate calls. Nil restores
// the discarding default.
func WithEvaluatorLogger(logger EvaluatorLogger) SetOption {
	return func(cfg *setConfig) {
		cfg.logger = logger
	}
}

// WithPersistenceLogger receives one event per provider call.
func WithPersistenceLogger(logger PersistenceLogger) SetOption {
	return func(cfg *setConfig) {
		cfg.persistenceLogger = logger
	}
}
