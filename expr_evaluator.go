package opts

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator runs expressions with github.com/expr-lang/expr. Variables
// are resolved at run time, so one program serves every snapshot.
type exprEvaluator struct {
	engineConfig
}

// NewExprEvaluator returns the default evaluator of a set.
func NewExprEvaluator(options ...EngineOption) Evaluator {
	return &exprEvaluator{engineConfig: applyEngineOptions(options)}
}

func (e *exprEvaluator) Engine() string { return EngineExpr }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, PhaseCompile, expression, ctx.label(), err)
	}
	return rule.Evaluate(ctx)
}

// Compile ignores declared variables: undefined names evaluate to nil.
func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineExpr, errEmptyExpression)
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return &exprRule{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) program(expression string) (*exprvm.Program, error) {
	key := EngineExpr + "|" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			fn := name
			options = append(options, exprlang.Function(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, PhaseCompile, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

type exprRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program, bindings(ctx, r.evaluator.registry, true))
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, PhaseRun, r.expression, ctx.label(), err)
	}
	return result, nil
}
