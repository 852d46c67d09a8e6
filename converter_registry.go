package opts

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

// ConverterRegistry maps declared value types to converters. Build it once
// before constructing sets; lookups never mutate it.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[reflect.Type]Converter
	order      []reflect.Type
}

// NewConverterRegistry returns a registry holding the built-in converters.
func NewConverterRegistry() *ConverterRegistry {
	r := NewEmptyConverterRegistry()
	r.mustRegister(reflect.TypeOf(""), StringConverter{})
	r.mustRegister(reflect.TypeOf(false), BoolConverter{})
	for _, sample := range []any{
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
	} {
		t := reflect.TypeOf(sample)
		r.mustRegister(t, NumberConverter{Type: t})
	}
	r.mustRegister(reflect.TypeOf(time.Time{}), DateConverter{})
	r.mustRegister(reflect.TypeOf(time.Duration(0)), DurationConverter{})
	return r
}

// NewEmptyConverterRegistry returns a registry without built-ins.
func NewEmptyConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{converters: make(map[reflect.Type]Converter)}
}

func (r *ConverterRegistry) mustRegister(t reflect.Type, c Converter) {
	if err := r.Register(t, c); err != nil {
		panic(err)
	}
}

// Register stores c for t guarding against duplicates.
func (r *ConverterRegistry) Register(t reflect.Type, c Converter) error {
	if t == nil {
		return fmt.Errorf("opts: converter type must not be nil")
	}
	if c == nil {
		return fmt.Errorf("opts: converter for %s is nil", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.converters == nil {
		r.converters = make(map[reflect.Type]Converter)
	}
	if _, exists := r.converters[t]; exists {
		return fmt.Errorf("opts: converter for %s already registered", t)
	}
	r.converters[t] = c
	r.order = append(r.order, t)
	return nil
}

// Replace stores c for t, overriding any existing registration.
func (r *ConverterRegistry) Replace(t reflect.Type, c Converter) error {
	if t == nil || c == nil {
		return fmt.Errorf("opts: converter type and converter are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.converters[t]; !exists {
		r.order = append(r.order, t)
	}
	r.converters[t] = c
	return nil
}

// RegisterType registers c for the type parameter T. For interface types pass
// the interface itself, e.g. RegisterType[fmt.Stringer].
func RegisterType[T any](r *ConverterRegistry, c Converter) error {
	return r.Register(reflect.TypeOf((*T)(nil)).Elem(), c)
}

// Lookup resolves the converter for t. An exact registration wins. A named
// type then falls back to the registered predeclared type of the same kind
// (type Port int uses the int converter). Last comes the most specific
// registered interface t implements; unrelated interfaces are tried in
// registration order.
func (r *ConverterRegistry) Lookup(t reflect.Type) (Converter, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.converters[t]; ok {
		return c, nil
	}

	if t.Kind() != reflect.Interface && t.Kind() != reflect.Struct {
		for _, candidate := range r.order {
			if candidate.Kind() == reflect.Interface || candidate.Kind() != t.Kind() {
				continue
			}
			if candidate.Name() != "" && candidate.PkgPath() == "" && t.ConvertibleTo(candidate) && candidate.ConvertibleTo(t) {
				return kindConverter{target: t, base: candidate, inner: r.converters[candidate]}, nil
			}
		}
	}

	var best reflect.Type
	for _, candidate := range r.order {
		if candidate.Kind() != reflect.Interface || !t.Implements(candidate) {
			continue
		}
		if best == nil || (candidate != best && candidate.Implements(best) && !best.Implements(candidate)) {
			best = candidate
		}
	}
	if best != nil {
		return r.converters[best], nil
	}

	return nil, fmt.Errorf("%w: no converter registered for %s", ErrUnsupportedType, t)
}

// Types returns registered types in registration order.
func (r *ConverterRegistry) Types() []reflect.Type {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]reflect.Type(nil), r.order...)
}

// Clone returns a copy that can be extended independently.
func (r *ConverterRegistry) Clone() *ConverterRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &ConverterRegistry{
		converters: make(map[reflect.Type]Converter, len(r.converters)),
		order:      append([]reflect.Type(nil), r.order...),
	}
	for t, c := range r.converters {
		clone.converters[t] = c
	}
	return clone
}
