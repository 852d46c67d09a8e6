package opts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-optset/pkg/activity"
)

// Set is an ordered, key-unique collection of options sharing one persistence
// provider. Every option call and every provider call holds the set's lock;
// sequences of calls are not atomic.
type Set struct {
	mu sync.Mutex

	name        string
	cfg         setConfig
	registry    *ConverterRegistry
	descriptors []Descriptor
	options     []*Option
	index       map[string]*Option
	provider    PersistenceProvider
	evaluator   Evaluator
	emitter     *activity.Emitter
}

// NewSet builds a set from its declarative descriptors. Keys are validated,
// converters resolved and rules compiled before any option is usable. The
// provider is bound to the set name through Init.
func NewSet(name string, descriptors []Descriptor, options ...SetOption) (*Set, error) {
	if name == "" {
		return nil, fmt.Errorf("opts: set name must not be empty")
	}
	cfg := applySetOptions(options)
	registry := cfg.registry
	if registry == nil {
		registry = NewConverterRegistry()
	}

	s := &Set{
		name:     name,
		cfg:      cfg,
		registry: registry,
		index:    make(map[string]*Option, len(descriptors)),
		emitter:  newActivityEmitter(cfg),
	}
	evaluator, err := resolveEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	s.evaluator = evaluator

	for _, descriptor := range descriptors {
		if err := ValidateKey(descriptor.Key); err != nil {
			return nil, err
		}
		if _, exists := s.index[descriptor.Key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, descriptor.Key)
		}
		option, err := s.buildOption(descriptor)
		if err != nil {
			return nil, err
		}
		s.options = append(s.options, option)
		s.index[descriptor.Key] = option
		s.descriptors = append(s.descriptors, descriptor.clone())
	}

	provider := cfg.provider
	if provider == nil {
		provider = NewTransientProvider()
	}
	provider.Init(name)
	s.provider = provider
	return s, nil
}

func (s *Set) buildOption(d Descriptor) (*Option, error) {
	if d.Type == nil {
		return nil, fmt.Errorf("%w: option %q declares no type", ErrUnsupportedType, d.Key)
	}
	option := &Option{
		lock:      &s.mu,
		key:       d.Key,
		typ:       d.Type,
		transient: d.Transient,
		readOnly:  d.ReadOnly,
	}

	converter, err := s.registry.Lookup(d.Type)
	if d.Collection {
		if err != nil {
			return nil, fmt.Errorf("opts: collection %q: %w", d.Key, err)
		}
		factory := d.Container
		if factory == nil {
			factory = NewQueueContainer
		}
		container := factory(d.Type)
		if container == nil {
			return nil, fmt.Errorf("opts: collection %q: container factory returned nil", d.Key)
		}
		option.container = container
		option.converter = collectionConverter{elem: d.Type, converter: converter}
		option.readOnly = true
		return option, nil
	}

	if err != nil {
		if !d.Transient || !errors.Is(err, ErrUnsupportedType) {
			return nil, fmt.Errorf("opts: option %q: %w", d.Key, err)
		}
		converter = nonConvertible{target: d.Type}
	}
	option.converter = converter

	if d.Rule != "" {
		validate, err := s.ruleValidator(d.Key, d.Rule)
		if err != nil {
			return nil, err
		}
		option.validate = validate
	}
	if d.Default != nil {
		text := *d.Default
		option.setDefault(&text)
	}
	return option, nil
}

func (s *Set) Name() string { return s.name }

// Descriptors enumerates the declarations of the set in order.
func (s *Set) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.descriptors))
	for i, d := range s.descriptors {
		out[i] = d.clone()
	}
	return out
}

// Keys returns option keys in declaration order.
func (s *Set) Keys() []string {
	keys := make([]string, len(s.options))
	for i, option := range s.options {
		keys[i] = option.key
	}
	return keys
}

// Option resolves an option by key.
func (s *Set) Option(key string) (*Option, bool) {
	option, ok := s.index[key]
	return option, ok
}

// Options returns the options in declaration order.
func (s *Set) Options() []*Option {
	return append([]*Option(nil), s.options...)
}

func (s *Set) lookup(key string) (*Option, error) {
	option, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return option, nil
}

// Value returns the typed value of key.
func (s *Set) Value(key string) (any, error) {
	option, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return option.Value()
}

// SetValue assigns the typed value of key.
func (s *Set) SetValue(key string, value any) error {
	option, err := s.lookup(key)
	if err != nil {
		return err
	}
	return option.SetValue(value)
}

// StringValue returns the text of key.
func (s *Set) StringValue(key string) (string, bool, error) {
	option, err := s.lookup(key)
	if err != nil {
		return "", false, err
	}
	return option.StringValue()
}

// SetStringValue assigns the text of key. Text that does not convert or
// breaks the option's rule is rejected with a *ConversionError and the option
// keeps its value.
func (s *Set) SetStringValue(key, text string) error {
	option, err := s.lookup(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := option.check(text); err != nil {
		return err
	}
	option.setString(&text)
	return nil
}

// Snapshot returns every option value keyed by option key. Collections are
// rendered as slices of their elements.
func (s *Set) Snapshot() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.options))
	for _, option := range s.options {
		if option.container != nil {
			values := option.container.Values()
			if values == nil {
				values = []any{}
			}
			out[option.key] = values
			continue
		}
		value, err := option.getValue()
		if err != nil {
			return nil, err
		}
		out[option.key] = value
	}
	return out, nil
}

func (s *Set) cells() []Cell {
	cells := make([]Cell, len(s.options))
	for i, option := range s.options {
		cells[i] = Cell{option: option}
	}
	return cells
}
