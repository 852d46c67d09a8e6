package accessor

import (
	"fmt"
	"reflect"
	"time"

	opts "github.com/goliatone/go-optset"
)

// Int returns the value of an integer option of any width. An absent value is
// 0.
func (a *Accessor) Int(key string) (int64, error) {
	value, err := a.Get(key)
	if err != nil || value == nil {
		return 0, err
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return 0, mismatch(key, value, "int64")
		}
		return int64(u), nil
	}
	return 0, mismatch(key, value, "integer")
}

// Float returns the value of a float or integer option. An absent value is 0.
func (a *Accessor) Float(key string) (float64, error) {
	value, err := a.Get(key)
	if err != nil || value == nil {
		return 0, err
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return 0, mismatch(key, value, "float")
}

// Bool returns the value of a boolean option. An absent value is false.
func (a *Accessor) Bool(key string) (bool, error) {
	value, err := a.Get(key)
	if err != nil || value == nil {
		return false, err
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Bool {
		return false, mismatch(key, value, "bool")
	}
	return rv.Bool(), nil
}

// String returns the textual form of any option. An absent value is "".
func (a *Accessor) String(key string) (string, error) {
	text, _, err := a.set.StringValue(key)
	return text, err
}

// Time returns the value of a time option. An absent value is the zero time.
func (a *Accessor) Time(key string) (time.Time, error) {
	value, err := a.Get(key)
	if err != nil || value == nil {
		return time.Time{}, err
	}
	t, ok := value.(time.Time)
	if !ok {
		return time.Time{}, mismatch(key, value, "time.Time")
	}
	return t, nil
}

// Duration returns the value of a duration option. An absent value is 0.
func (a *Accessor) Duration(key string) (time.Duration, error) {
	value, err := a.Get(key)
	if err != nil || value == nil {
		return 0, err
	}
	d, ok := value.(time.Duration)
	if !ok {
		return 0, mismatch(key, value, "time.Duration")
	}
	return d, nil
}

// Collection returns the live container of a collection option.
func (a *Accessor) Collection(key string) (opts.Container, error) {
	option, ok := a.set.Option(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", opts.ErrUnknownKey, key)
	}
	container, ok := option.Container()
	if !ok {
		return nil, fmt.Errorf("%w: option %q is not a collection", opts.ErrInvalidValue, key)
	}
	return container, nil
}

// Lookup returns the value of key as T. An absent value is the zero T.
func Lookup[T any](a *Accessor, key string) (T, error) {
	option, ok := a.set.Option(key)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q", opts.ErrUnknownKey, key)
	}
	return opts.ValueAs[T](option)
}

func mismatch(key string, value any, want string) error {
	return fmt.Errorf("%w: option %q holds %T, not %s", opts.ErrInvalidValue, key, value, want)
}
