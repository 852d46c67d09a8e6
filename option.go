package opts

import (
	"fmt"
	"reflect"
	"sync"
)

// Option is one named configuration cell holding a textual and a typed
// representation of the same value. Each side is converted lazily from the
// other and cached until the next mutation.
type Option struct {
	lock      sync.Locker
	key       string
	typ       reflect.Type
	converter Converter

	str         *string
	value       any
	stringFresh bool
	valueFresh  bool

	defaultValue *string
	defaultSet   bool

	transient bool
	readOnly  bool
	validate  func(any) error
	container Container
}

// NewOption builds a standalone option guarded by its own lock. Options built
// by NewSet share the set's lock instead.
func NewOption(key string, typ reflect.Type, converter Converter) *Option {
	return &Option{
		lock:      &sync.Mutex{},
		key:       key,
		typ:       typ,
		converter: converter,
	}
}

func (o *Option) Key() string { return o.key }

func (o *Option) Type() reflect.Type { return o.typ }

// Transient options are skipped by every persistence provider.
func (o *Option) Transient() bool { return o.transient }

// ReadOnly reports whether accessors may write the option. The option itself
// does not enforce it.
func (o *Option) ReadOnly() bool { return o.readOnly }

func (o *Option) IsCollection() bool { return o.container != nil }

// Container returns the live backing container of a collection option.
func (o *Option) Container() (Container, bool) {
	if o.container == nil {
		return nil, false
	}
	return o.container, true
}

// Value returns the typed value, converting the cached text at most once per
// mutation. It returns nil when the option holds no value.
func (o *Option) Value() (any, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.getValue()
}

// SetValue stores v as the authoritative representation. Values whose type is
// not assignable to the declared type are rejected without changing state.
func (o *Option) SetValue(v any) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.setValue(v)
}

// StringValue returns the textual value. ok is false when the option holds no
// value.
func (o *Option) StringValue() (text string, ok bool, err error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.getString()
}

// SetStringValue stores text as the authoritative representation. Text that
// breaks the option's rule is reported by the next Value call.
func (o *Option) SetStringValue(text string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.setString(&text)
}

// Clear stores an absent textual value.
func (o *Option) Clear() {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.setString(nil)
}

// TryStringToValueConversion reports whether the current text converts. A
// failed attempt leaves the cache untouched.
func (o *Option) TryStringToValueConversion() bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	_, err := o.getValue()
	return err == nil
}

// Check reports whether text would convert and satisfy the option's rule,
// without changing the option.
func (o *Option) Check(text string) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.check(text)
}

// DefaultValue returns the default text and whether one was set.
func (o *Option) DefaultValue() (string, bool) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if !o.defaultSet || o.defaultValue == nil {
		return "", o.defaultSet
	}
	return *o.defaultValue, true
}

// IsDefault reports whether the option has a declared default equal to its
// current text. An absent default matches only an absent value.
func (o *Option) IsDefault() (bool, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.isDefault()
}

func (o *Option) isDefault() (bool, error) {
	if !o.defaultSet {
		return false, nil
	}
	text, ok, err := o.getString()
	if err != nil {
		return false, err
	}
	if o.defaultValue == nil {
		return !ok, nil
	}
	return ok && *o.defaultValue == text, nil
}

// SetDefaultValue records text as the default. An option that was never
// assigned takes the default as its current value.
func (o *Option) SetDefaultValue(text string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.setDefault(&text)
}

// ResetToDefaultValue is SetStringValue with the default text.
func (o *Option) ResetToDefaultValue() {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.reset()
}

func (o *Option) getValue() (any, error) {
	if o.container != nil {
		return o.container, nil
	}
	if o.valueFresh {
		return o.value, nil
	}
	if !o.stringFresh {
		return nil, nil
	}
	if o.str == nil {
		o.value = nil
		o.valueFresh = true
		return nil, nil
	}
	value, err := o.converter.FromString(*o.str)
	if err != nil {
		return nil, &ConversionError{Key: o.key, Text: *o.str, Err: err}
	}
	if value != nil && o.validate != nil {
		if err := o.validate(value); err != nil {
			return nil, &ConversionError{Key: o.key, Text: *o.str, Err: err}
		}
	}
	o.value = value
	o.valueFresh = true
	return value, nil
}

func (o *Option) getString() (string, bool, error) {
	if o.container != nil {
		text, err := o.converter.ToString(o.container)
		if err != nil {
			return "", false, err
		}
		return text, true, nil
	}
	if o.stringFresh {
		if o.str == nil {
			return "", false, nil
		}
		return *o.str, true, nil
	}
	if !o.valueFresh {
		return "", false, nil
	}
	if o.value == nil {
		o.str = nil
		o.stringFresh = true
		return "", false, nil
	}
	text, err := o.converter.ToString(o.value)
	if err != nil {
		return "", false, &ConversionError{Key: o.key, Text: fmt.Sprint(o.value), Err: err}
	}
	o.str = &text
	o.stringFresh = true
	return text, true, nil
}

func (o *Option) setValue(v any) error {
	if o.container != nil {
		return invalidValue(o.key, "collection options are read-only")
	}
	if v != nil {
		if o.typ != nil && !reflect.TypeOf(v).AssignableTo(o.typ) {
			return invalidValue(o.key, "cannot assign %T to %s", v, o.typ)
		}
		if o.validate != nil {
			if err := o.validate(v); err != nil {
				return err
			}
		}
	}
	o.value = v
	o.valueFresh = true
	o.str = nil
	o.stringFresh = false
	return nil
}

func (o *Option) setString(text *string) {
	if o.container != nil {
		return
	}
	if text != nil {
		copied := *text
		text = &copied
	}
	o.str = text
	o.stringFresh = true
	o.value = nil
	o.valueFresh = false
}

func (o *Option) setDefault(text *string) {
	if o.container != nil {
		return
	}
	o.defaultValue = text
	o.defaultSet = true
	if !o.stringFresh && !o.valueFresh {
		o.setString(text)
	}
}

func (o *Option) reset() {
	o.setString(o.defaultValue)
}

// check converts text and applies the option's rule without touching the
// cache.
func (o *Option) check(text string) error {
	if o.container != nil {
		return nil
	}
	value, err := o.converter.FromString(text)
	if err != nil {
		return &ConversionError{Key: o.key, Text: text, Err: err}
	}
	if value != nil && o.validate != nil {
		if err := o.validate(value); err != nil {
			return &ConversionError{Key: o.key, Text: text, Err: err}
		}
	}
	return nil
}

// ValueAs returns the option value as T. An absent value yields the zero T.
func ValueAs[T any](o *Option) (T, error) {
	var zero T
	if o == nil {
		return zero, fmt.Errorf("%w: nil option", ErrUnknownKey)
	}
	value, err := o.Value()
	if err != nil || value == nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, invalidValue(o.key, "value of type %T is not %T", value, zero)
	}
	return typed, nil
}
