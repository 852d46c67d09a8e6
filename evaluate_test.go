package opts

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func engineOptions(cache ProgramCache, registry *FunctionRegistry) []EngineOption {
	var options []EngineOption
	if cache != nil {
		options = append(options, EngineCache(cache))
	}
	if registry != nil {
		options = append(options, EngineFunctions(registry))
	}
	return options
}

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: EngineExpr,
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewExprEvaluator(engineOptions(cache, registry)...)
		},
	},
	{
		name: EngineCEL,
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewCELEvaluator(engineOptions(cache, registry)...)
		},
	},
	{
		name: EngineJS,
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewJSEvaluator(engineOptions(cache, registry)...)
		},
	},
}

func forEachEvaluator(t *testing.T, fn func(t *testing.T, newEvaluator func(ProgramCache, *FunctionRegistry) Evaluator)) {
	t.Helper()
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			if factory.name == EngineJS && !jsEvaluatorAvailable() {
				t.Skip("js evaluator requires the js_eval build tag")
			}
			fn(t, factory.new)
		})
	}
}

func TestRuleGuardsSetValue(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, newEvaluator func(ProgramCache, *FunctionRegistry) Evaluator) {
		set, err := NewSet("server", []Descriptor{
			Field[int]("port", Default("8080"), Rule("value > 0")),
		}, WithEvaluator(newEvaluator(nil, nil)))
		if err != nil {
			t.Fatalf("new set: %v", err)
		}
		if err := set.SetValue("port", 0); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("expected rule rejection, got %v", err)
		}
		if value, _ := set.Value("port"); value != 8080 {
			t.Fatalf("expected rejected value to leave 8080, got %v", value)
		}
		if err := set.SetValue("port", 443); err != nil {
			t.Fatalf("expected 443 accepted, got %v", err)
		}
		if err := set.SetValue("port", nil); err != nil {
			t.Fatalf("expected nil to bypass the rule, got %v", err)
		}
	})
}

func TestRuleGuardsStringValue(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, newEvaluator func(ProgramCache, *FunctionRegistry) Evaluator) {
		set, err := NewSet("server", []Descriptor{
			Field[int]("port", Default("80"), Rule("value < 1000")),
		}, WithEvaluator(newEvaluator(nil, nil)))
		if err != nil {
			t.Fatalf("new set: %v", err)
		}
		err = set.SetStringValue("port", "5000")
		if !errors.Is(err, ErrInvalidValue) || !errors.Is(err, ErrConversion) {
			t.Fatalf("expected rule rejection, got %v", err)
		}
		if value, _ := set.Value("port"); value != 80 {
			t.Fatalf("expected rejected text to leave 80, got %v", value)
		}
		if err := set.SetStringValue("port", "not-a-port"); !errors.Is(err, ErrConversion) {
			t.Fatalf("expected conversion failure, got %v", err)
		}
		if err := set.SetStringValue("port", "443"); err != nil {
			t.Fatalf("expected 443 accepted, got %v", err)
		}

		option, _ := set.Option("port")
		option.SetStringValue("5000")
		if _, err := option.Value(); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("expected Value to reject text stored past the rule, got %v", err)
		}
		if text, ok, _ := option.StringValue(); !ok || text != "5000" {
			t.Fatalf("expected stored text kept, got %q", text)
		}
	})
}

func TestEvaluateBindsOptions(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, newEvaluator func(ProgramCache, *FunctionRegistry) Evaluator) {
		set, err := NewSet("server", []Descriptor{
			Field[int]("port", Default("8080")),
			Field[string]("host", Default("localhost")),
		}, WithEvaluator(newEvaluator(nil, nil)))
		if err != nil {
			t.Fatalf("new set: %v", err)
		}
		resp, err := set.Evaluate(`options.port > 1024 && options.host == "localhost"`)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if resp.Value != true {
			t.Fatalf("expected true, got %v", resp.Value)
		}
	})
}

func TestRuleChecksStagedValuesOnLoad(t *testing.T) {
	set, err := NewSet("server", []Descriptor{
		Field[int]("port", Default("8080"), Rule("between(value, 1, 65535)")),
		Field[string]("mode", Default("dev"), Rule(`oneof(value, "dev", "prod")`)),
	}, WithProvider(newTextProvider("port=0\nmode=prod\n")))
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	_, err = set.Load(context.Background(), false)
	var aggregate *AggregateConversionError
	if !errors.As(err, &aggregate) || !reflect.DeepEqual(aggregate.Keys(), []string{"port"}) {
		t.Fatalf("expected port rejected on load, got %v", err)
	}
	if value, _ := set.Value("mode"); value != "dev" {
		t.Fatalf("expected atomic load to leave mode, got %v", value)
	}

	if err := set.SetValue("mode", "staging"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected oneof rejection, got %v", err)
	}
}

func TestRuleMustReturnBool(t *testing.T) {
	set, err := NewSet("s", []Descriptor{Field[int]("n", Rule("value + 1"))})
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	if err := set.SetValue("n", 1); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected non-bool rule rejected, got %v", err)
	}
}

func TestRuleSeesKey(t *testing.T) {
	set, err := NewSet("s", []Descriptor{Field[string]("name", Rule(`value != key`))})
	if err != nil {
		t.Fatal(err)
	}
	if err := set.SetValue("name", "name"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected value equal to key rejected, got %v", err)
	}
	if err := set.SetValue("name", "other"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEvaluateBuiltins(t *testing.T) {
	set, err := NewSet("net", []Descriptor{Field[string]("raw", Default(`a\:1:b`))})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		expr string
		want any
	}{
		{expr: `elements(options.raw)`, want: []any{"a:1", "b"}},
		{expr: `escape("x:y")`, want: `x\:y`},
		{expr: `between(5, 1, 10)`, want: true},
		{expr: `oneof(3, 1, 2)`, want: false},
		{expr: `len(elements(options.raw))`, want: 2},
	}
	for _, tc := range cases {
		resp, err := set.Evaluate(tc.expr)
		if err != nil {
			t.Fatalf("%s: %v", tc.expr, err)
		}
		if !reflect.DeepEqual(resp.Value, tc.want) {
			t.Fatalf("%s: expected %#v, got %#v", tc.expr, tc.want, resp.Value)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	set, err := NewSet("s", []Descriptor{Field[int]("n")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := set.Evaluate(""); err == nil {
		t.Fatalf("expected empty expression rejected")
	}
	_, err = set.Evaluate("options.n +")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "expr" || evalErr.Target != "s" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
}

func TestEvaluateWithExplicitSnapshot(t *testing.T) {
	set, err := NewSet("s", []Descriptor{Field[int]("n", Default("1"))})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := set.EvaluateWith(RuleContext{
		Snapshot: map[string]any{"x": 40},
		Args:     map[string]any{"y": 2},
	}, "x + args.y")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != 42 {
		t.Fatalf("expected 42, got %v", resp.Value)
	}
}

func TestWithCustomFunction(t *testing.T) {
	set, err := NewSet("s", []Descriptor{
		Field[int]("n", Default("4"), Rule("even(value)")),
	}, WithCustomFunction("even", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("even takes one argument")
		}
		n, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("even needs a number")
		}
		return int(n)%2 == 0, nil
	}))
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	if err := set.SetValue("n", 3); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected odd rejected, got %v", err)
	}
	resp, err := set.Evaluate("even(options.n)")
	if err != nil || resp.Value != true {
		t.Fatalf("expected even(4), got %v (%v)", resp.Value, err)
	}
}

type countingCache struct {
	ProgramCache
	sets int
}

func (c *countingCache) Set(key string, value any) {
	c.sets++
	c.ProgramCache.Set(key, value)
}

func TestProgramCacheReuse(t *testing.T) {
	cache := &countingCache{ProgramCache: NewProgramCache()}
	set, err := NewSet("s", []Descriptor{Field[int]("n", Default("2"))}, WithProgramCache(cache))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		resp, err := set.Evaluate("options.n * 2")
		if err != nil || resp.Value != 4 {
			t.Fatalf("expected 4, got %v (%v)", resp.Value, err)
		}
	}
	if cache.sets != 1 {
		t.Fatalf("expected one compiled program, got %d", cache.sets)
	}
}

func TestEvaluatorLogging(t *testing.T) {
	var events []EvaluatorLogEvent
	set, err := NewSet("s", []Descriptor{Field[int]("n", Rule("value < 10"))},
		WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
			events = append(events, event)
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	_ = set.SetValue("n", 5)
	_, _ = set.Evaluate("options.n")
	if len(events) != 2 {
		t.Fatalf("expected two evaluations logged, got %d", len(events))
	}
	if events[0].Target != "n" || events[0].Expr != "value < 10" || events[0].Engine != "expr" {
		t.Fatalf("unexpected rule event %+v", events[0])
	}
	if events[1].Target != "s" || events[1].Err != nil {
		t.Fatalf("unexpected evaluate event %+v", events[1])
	}
}

func TestNewEvaluatorByName(t *testing.T) {
	for _, name := range []string{"", "expr", "CEL"} {
		evaluator, err := NewEvaluator(name)
		if err != nil || evaluator == nil {
			t.Fatalf("%q: expected evaluator, got %v", name, err)
		}
	}
	if _, err := NewEvaluator("lua"); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected unknown engine, got %v", err)
	}
	if _, err := NewEvaluator(EngineJS); jsEvaluatorAvailable() == (err != nil) {
		t.Fatalf("js availability mismatch: available=%v err=%v", jsEvaluatorAvailable(), err)
	}
	if _, err := NewSet("s", nil, WithEngine("lua")); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected NewSet to reject unknown engine, got %v", err)
	}

	set, err := NewSet("s", []Descriptor{Field[int]("n", Default("3"))}, WithEngine(EngineCEL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := set.Evaluate(`call("between", options.n, 1, 5)`)
	if err != nil || resp.Value != true {
		t.Fatalf("expected cel call binding, got %v (%v)", resp.Value, err)
	}
}

func TestCELRulesCompileAtDeclaration(t *testing.T) {
	_, err := NewSet("s", []Descriptor{Field[int]("n", Rule("value >"))}, WithEngine(EngineCEL))
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected cel rule rejected by NewSet, got %v", err)
	}
	_, err = NewSet("s", []Descriptor{Field[int]("n", Rule("other > 1"))}, WithEngine(EngineCEL))
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected undeclared variable rejected, got %v", err)
	}
}

func TestEvaluationErrorPhase(t *testing.T) {
	set, err := NewSet("s", []Descriptor{Field[int]("n")})
	if err != nil {
		t.Fatal(err)
	}
	_, err = set.Evaluate("1 +")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || !evalErr.Compile() {
		t.Fatalf("expected compile phase, got %v", err)
	}
	_, err = set.Evaluate(`between("a", 1, 2)`)
	if !errors.As(err, &evalErr) || evalErr.Compile() {
		t.Fatalf("expected run phase, got %v", err)
	}
}
