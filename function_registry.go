package opts

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Function represents a callable registered against evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("opts: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("opts: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("opts: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("opts: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("opts: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes registry functions to rule and Evaluate
// expressions.
func WithFunctionRegistry(registry *FunctionRegistry) SetOption {
	return func(cfg *setConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the set's expressions,
// alongside the built-in functions.
func WithCustomFunction(name string, fn Function) SetOption {
	return func(cfg *setConfig) {
		if cfg.functions == nil {
			cfg.functions = NewBuiltinFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// NewBuiltinFunctionRegistry returns a registry holding the functions every
// set exposes by default:
//
//	elements(text)          splits collection text into its unescaped elements
//	escape(text)            escapes one collection element
//	oneof(value, c1, ...)   reports whether value equals one of the candidates
//	between(value, lo, hi)  reports whether lo <= value <= hi for numbers
func NewBuiltinFunctionRegistry() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("elements", builtinElements)
	_ = registry.Register("escape", builtinEscape)
	_ = registry.Register("oneof", builtinOneOf)
	_ = registry.Register("between", builtinBetween)
	return registry
}

func builtinElements(args ...any) (any, error) {
	text, err := singleStringArg("elements", args)
	if err != nil {
		return nil, err
	}
	parts := SplitElements(text)
	out := make([]any, len(parts))
	for i, part := range parts {
		out[i] = part
	}
	return out, nil
}

func builtinEscape(args ...any) (any, error) {
	text, err := singleStringArg("escape", args)
	if err != nil {
		return nil, err
	}
	return EscapeElement(text), nil
}

func builtinOneOf(args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("opts: oneof requires a value and at least one candidate")
	}
	for _, candidate := range args[1:] {
		if fmt.Sprint(candidate) == fmt.Sprint(args[0]) {
			return true, nil
		}
	}
	return false, nil
}

func builtinBetween(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("opts: between requires value, lower and upper bounds")
	}
	bounds := make([]float64, 3)
	for i, arg := range args {
		number, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("opts: between argument %d is %T, want number", i, arg)
		}
		bounds[i] = number
	}
	return bounds[1] <= bounds[0] && bounds[0] <= bounds[2], nil
}

func singleStringArg(name string, args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("opts: %s requires exactly one argument", name)
	}
	text, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("opts: %s argument is %T, want string", name, args[0])
	}
	return text, nil
}

func toFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
