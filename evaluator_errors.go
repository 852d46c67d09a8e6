package opts

import (
	"errors"
	"fmt"
	"strings"
)

// Phases reported by EvaluationError.
const (
	PhaseCompile = "compile"
	PhaseRun     = "run"
)

var errEmptyExpression = errors.New("expression must not be empty")

// EvaluationError reports a failed compile or run of one expression. Target
// is the option key for rules and the set name for Evaluate.
type EvaluationError struct {
	Engine string
	Phase  string
	Expr   string
	Target string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	phase := e.Phase
	if phase == "" {
		phase = PhaseRun
	}
	return fmt.Sprintf("opts: %s %s failed %s target=%s: %v", e.Engine, phase, describeExpression(e.Expr), e.Target, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Compile reports whether the expression never produced a program.
func (e *EvaluationError) Compile() bool {
	return e != nil && e.Phase == PhaseCompile
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "opts:") {
		return err
	}
	return fmt.Errorf("opts: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches evaluation metadata to err. An existing
// EvaluationError only has its blank fields filled.
func wrapEvaluationError(engine, phase, expr, target string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Phase == "" {
			evalErr.Phase = phase
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Target == "" {
			evalErr.Target = target
		}
		return evalErr
	}
	return &EvaluationError{
		Engine: engine,
		Phase:  phase,
		Expr:   expr,
		Target: target,
		Err:    err,
	}
}
