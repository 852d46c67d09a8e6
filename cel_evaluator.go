package opts

import (
	"fmt"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celEvaluator runs expressions with cel-go. CEL checks expressions against a
// declared environment, so a program is bound to the variable names it was
// compiled with.
type celEvaluator struct {
	engineConfig
}

// NewCELEvaluator returns an evaluator backed by cel-go. Registry functions
// are reachable through `call("name", args...)`.
func NewCELEvaluator(options ...EngineOption) Evaluator {
	return &celEvaluator{engineConfig: applyEngineOptions(options)}
}

func (e *celEvaluator) Engine() string { return EngineCEL }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, PhaseCompile, expression, ctx.label(), err)
	}
	return rule.Evaluate(ctx)
}

// Compile checks expression right away when variables are declared and
// defers to the first evaluation otherwise.
func (e *celEvaluator) Compile(expression string, options ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineCEL, errEmptyExpression)
	}
	rule := &celRule{evaluator: e, expression: expression}
	cfg := applyCompileOptions(options)
	if len(cfg.variables) > 0 {
		program, err := e.program(expression, cfg.variables)
		if err != nil {
			return nil, wrapEvaluationError(EngineCEL, PhaseCompile, expression, "", err)
		}
		rule.program = program
	}
	return rule, nil
}

type celProgram struct {
	program   celgo.Program
	variables map[string]struct{}
}

// covers reports whether every snapshot key was declared when compiling.
func (p *celProgram) covers(snapshot map[string]any) bool {
	for key := range snapshot {
		if _, ok := p.variables[key]; !ok {
			return false
		}
	}
	return true
}

func (e *celEvaluator) program(expression string, variables []string) (*celProgram, error) {
	names := append([]string(nil), variables...)
	sort.Strings(names)
	key := EngineCEL + "|" + strings.Join(names, ",") + "|" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.env(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	bundle := &celProgram{program: prg, variables: make(map[string]struct{}, len(names))}
	for _, name := range names {
		bundle.variables[name] = struct{}{}
	}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) env(variables []string) (*celgo.Env, error) {
	options := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
	}
	if e.registry != nil {
		options = append(options, celgo.Function("call", e.callOverloads()...))
	}
	for _, name := range variables {
		switch name {
		case "now", "args", "metadata":
			continue
		}
		options = append(options, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(options...)
}

type celRule struct {
	evaluator  *celEvaluator
	expression string
	program    *celProgram
}

func (r *celRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	snapshot := snapshotAsMap(ctx.Snapshot)
	program := r.program
	if program == nil || !program.covers(snapshot) {
		names := make([]string, 0, len(snapshot))
		for key := range snapshot {
			names = append(names, key)
		}
		compiled, err := r.evaluator.program(r.expression, names)
		if err != nil {
			return nil, wrapEvaluationError(EngineCEL, PhaseCompile, r.expression, ctx.label(), err)
		}
		program = compiled
	}
	out, _, err := program.program.Eval(bindings(ctx, r.evaluator.registry, false))
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, PhaseRun, r.expression, ctx.label(), err)
	}
	return out.Value(), nil
}

// callOverloads declares call(name) up to call(name, a, b, c, d), one
// overload per arity.
func (e *celEvaluator) callOverloads() []celgo.FunctionOpt {
	binding := celgo.FunctionBinding(e.call)
	overloads := make([]celgo.FunctionOpt, 0, maxCallArgs+1)
	params := []*celgo.Type{celgo.StringType}
	for arity := 0; arity <= maxCallArgs; arity++ {
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("call_%d", arity),
			append([]*celgo.Type(nil), params...),
			celgo.DynType,
			binding,
		))
		params = append(params, celgo.DynType)
	}
	return overloads
}

const maxCallArgs = 4

func (e *celEvaluator) call(values ...ref.Val) ref.Val {
	if len(values) == 0 {
		return types.NewErr("opts: call requires function name")
	}
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("opts: call name must be string")
	}
	args := make([]any, 0, len(values)-1)
	for _, val := range values[1:] {
		args = append(args, val.Value())
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
