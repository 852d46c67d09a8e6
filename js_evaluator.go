//go:build js_eval

package opts

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator runs expressions as JavaScript with goja. Every evaluation
// gets a fresh runtime.
type jsEvaluator struct {
	engineConfig
}

// NewJSEvaluator returns an evaluator backed by goja.
func NewJSEvaluator(options ...EngineOption) Evaluator {
	return &jsEvaluator{engineConfig: applyEngineOptions(options)}
}

func (e *jsEvaluator) Engine() string { return EngineJS }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, PhaseCompile, expression, ctx.label(), err)
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineJS, errEmptyExpression)
	}
	key := EngineJS + "|" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return &jsRule{evaluator: e, expression: expression, program: program}, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, PhaseCompile, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return &jsRule{evaluator: e, expression: expression, program: program}, nil
}

type jsRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	vm := goja.New()
	for name, value := range bindings(ctx, r.evaluator.registry, true) {
		if err := vm.Set(name, value); err != nil {
			return nil, wrapEvaluationError(EngineJS, PhaseRun, r.expression, ctx.label(), err)
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, PhaseRun, r.expression, ctx.label(), err)
	}
	return value.Export(), nil
}

func jsEvaluatorAvailable() bool {
	return true
}
