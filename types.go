package opts

import (
	"time"

	"github.com/goliatone/go-optset/pkg/activity"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened option descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI represents OpenAPI-compatible JSON Schema documents.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema output alongside its format
// identifier. Implementations must ensure Document is JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Set      string
	Document any
}

// SchemaGenerator transforms a set description into a schema document. All
// implementations MUST be safe for concurrent use and handle an empty
// description by returning an empty schema document.
type SchemaGenerator interface {
	Generate(set SetDescription) (SchemaDocument, error)
}

// SetDescription is the read-only view of a set handed to schema generators.
type SetDescription struct {
	Name        string
	Descriptors []Descriptor
}

// Response stores a typed result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// RuleContext carries inputs needed when evaluating an expression. Label
// names the set or option under evaluation in errors and logs.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Label    string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) label() string {
	if ctx.Label != "" {
		return ctx.Label
	}
	return "unknown"
}

// Evaluator executes expressions against a rule context. Engine names the
// implementation in errors and logs.
type Evaluator interface {
	Engine() string
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	variables []string
}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// SetOption configures a Set built by NewSet.
type SetOption func(*setConfig)

type setConfig struct {
	registry          *ConverterRegistry
	provider          PersistenceProvider
	evaluator         Evaluator
	engine            string
	programCache      ProgramCache
	functions         *FunctionRegistry
	logger            EvaluatorLogger
	persistenceLogger PersistenceLogger
	schemaGenerator   SchemaGenerator
	activityHooks     activity.Hooks
	activityChannel   string
	activityVerbs     []string
}

func applySetOptions(options []SetOption) setConfig {
	cfg := setConfig{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithRegistry supplies the converter registry. NewSet uses a registry with
// the built-in converters when none is given.
func WithRegistry(registry *ConverterRegistry) SetOption {
	return func(cfg *setConfig) {
		cfg.registry = registry
	}
}

// WithProvider supplies the persistence provider. The default is a
// TransientProvider.
func WithProvider(provider PersistenceProvider) SetOption {
	return func(cfg *setConfig) {
		cfg.provider = provider
	}
}

// WithEvaluator configures the evaluator used for rules and Evaluate.
func WithEvaluator(e Evaluator) SetOption {
	return func(cfg *setConfig) {
		cfg.evaluator = e
	}
}

// WithSchemaGenerator configures a custom schema generator implementation.
func WithSchemaGenerator(generator SchemaGenerator) SetOption {
	return func(cfg *setConfig) {
		cfg.schemaGenerator = generator
	}
}

func (cfg setConfig) evaluatorLogger() EvaluatorLogger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return discardLogger{}
}

func (cfg setConfig) persistenceLog() PersistenceLogger {
	if cfg.persistenceLogger != nil {
		return cfg.persistenceLogger
	}
	return discardLogger{}
}
