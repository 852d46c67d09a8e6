package opts

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("opts: evaluator not configured")

// Evaluate executes expr against the current option values. The values are
// bound as the `options` map, keyed by option key.
func (s *Set) Evaluate(expr string) (Response[any], error) {
	return s.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith executes expr using ctx, falling back to the option snapshot
// when ctx.Snapshot is nil.
func (s *Set) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, wrapEvaluatorError(evaluatorEngineName(s.evaluator), errEmptyExpression)
	}
	if s.evaluator == nil {
		return Response[any]{}, ErrNoEvaluator
	}
	if ctx.Snapshot == nil {
		snapshot, err := s.Snapshot()
		if err != nil {
			return Response[any]{}, err
		}
		ctx.Snapshot = map[string]any{"options": snapshot}
	}
	if ctx.Label == "" {
		ctx.Label = s.name
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(s.evaluator)
	start := time.Now()
	value, evalErr := s.evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, PhaseRun, expr, ctx.label(), evalErr)
	s.cfg.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Set:      s.name,
		Engine:   engine,
		Expr:     expr,
		Target:   ctx.label(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

func resolveEvaluator(cfg setConfig) (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	registry := cfg.functions
	if registry == nil {
		registry = NewBuiltinFunctionRegistry()
	}
	options := []EngineOption{EngineFunctions(registry)}
	if cfg.programCache != nil {
		options = append(options, EngineCache(cfg.programCache))
	}
	return NewEvaluator(cfg.engine, options...)
}

// ruleValidator compiles expr once and returns a check run against every
// non-nil value assigned to the option.
func (s *Set) ruleValidator(key, expr string) (func(any) error, error) {
	rule, err := s.evaluator.Compile(expr, DeclareVariables("value", "key"))
	if err != nil {
		return nil, fmt.Errorf("%w: option %q: %v", ErrInvalidRule, key, err)
	}
	engine := evaluatorEngineName(s.evaluator)
	logger := s.cfg.evaluatorLogger()
	return func(value any) error {
		if value == nil {
			return nil
		}
		start := time.Now()
		result, err := rule.Evaluate(RuleContext{
			Snapshot: map[string]any{"value": value, "key": key},
			Label:    key,
		})
		logger.LogEvaluation(EvaluatorLogEvent{
			Set:      s.name,
			Rule:     true,
			Engine:   engine,
			Expr:     expr,
			Target:   key,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return fmt.Errorf("%w: option %q: %v", ErrInvalidValue, key, err)
		}
		accepted, ok := result.(bool)
		if !ok {
			return fmt.Errorf("%w: option %q: rule returned %T, want bool", ErrInvalidRule, key, result)
		}
		if !accepted {
			return invalidValue(key, "rejected by rule %q", expr)
		}
		return nil
	}, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if engine := e.Engine(); engine != "" {
		return engine
	}
	return "custom"
}
