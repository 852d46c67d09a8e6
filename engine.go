package opts

import (
	"errors"
	"fmt"
	"strings"
)

// Engine names accepted by NewEvaluator and WithEngine.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var ErrUnknownEngine = errors.New("opts: unknown evaluator engine")

// EngineOption configures an evaluator built by NewEvaluator or one of the
// engine constructors.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EngineCache stores compiled programs in cache.
func EngineCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// EngineFunctions exposes the functions of registry to expressions. The
// registry is cloned.
func EngineFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyEngineOptions(options []EngineOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewEvaluator builds the evaluator named by engine. The empty name selects
// expr. The js engine is only available with the js_eval build tag.
func NewEvaluator(engine string, options ...EngineOption) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(options...), nil
	case EngineCEL:
		return NewCELEvaluator(options...), nil
	case EngineJS:
		if evaluator := NewJSEvaluator(options...); evaluator != nil {
			return evaluator, nil
		}
		return nil, fmt.Errorf("%w: %s requires the js_eval build tag", ErrUnknownEngine, engine)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
}

// Engines lists the engine names NewEvaluator accepts in this build.
func Engines() []string {
	engines := []string{EngineExpr, EngineCEL}
	if jsEvaluatorAvailable() {
		engines = append(engines, EngineJS)
	}
	return engines
}

// WithEngine selects the evaluator engine by name. WithEvaluator takes
// precedence when both are given.
func WithEngine(engine string) SetOption {
	return func(cfg *setConfig) {
		cfg.engine = engine
	}
}

// DeclareVariables names the variables every evaluation of a compiled rule
// binds. Engines with a checked environment compile against them up front.
func DeclareVariables(names ...string) CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.variables = append(cfg.variables, names...)
	})
}

func applyCompileOptions(options []CompileOption) compileConfig {
	cfg := compileConfig{}
	for _, opt := range options {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	return cfg
}

// bindings is the variable set shared by every engine: now, args, metadata,
// the snapshot keys, and one function per registry entry plus `call`.
func bindings(ctx RuleContext, registry *FunctionRegistry, withFunctions bool) map[string]any {
	env := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		env[key] = value
	}
	if registry == nil || !withFunctions {
		return env
	}
	env["call"] = func(name string, arguments ...any) (any, error) {
		return registry.Call(name, arguments...)
	}
	for _, name := range registry.Names() {
		fn := name
		env[fn] = func(arguments ...any) (any, error) {
			return registry.Call(fn, arguments...)
		}
	}
	return env
}

func snapshotAsMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
