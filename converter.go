package opts

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the textual layout used for time.Time option values.
const DateLayout = "2006-01-02 15:04:05.000"

// Converter translates between the text stored by a persistence provider and
// the typed value held in memory. FromString may return nil for text that
// represents an absent value.
type Converter interface {
	FromString(text string) (any, error)
	ToString(value any) (string, error)
}

// ConverterFuncs adapts a pair of functions to Converter.
type ConverterFuncs struct {
	From func(text string) (any, error)
	To   func(value any) (string, error)
}

func (c ConverterFuncs) FromString(text string) (any, error) {
	if c.From == nil {
		return nil, fmt.Errorf("string to value conversion not supported")
	}
	return c.From(text)
}

func (c ConverterFuncs) ToString(value any) (string, error) {
	if c.To == nil {
		return "", fmt.Errorf("value to string conversion not supported")
	}
	return c.To(value)
}

// StringConverter is the identity converter.
type StringConverter struct{}

func (StringConverter) FromString(text string) (any, error) {
	return text, nil
}

func (StringConverter) ToString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	return s, nil
}

// BoolConverter accepts yes/true/1 and no/false/0, case-insensitively.
type BoolConverter struct{}

func (BoolConverter) FromString(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	switch strings.ToLower(text) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	}
	return nil, fmt.Errorf("%q is not a boolean", text)
}

func (BoolConverter) ToString(value any) (string, error) {
	b, ok := value.(bool)
	if !ok {
		return "", fmt.Errorf("expected bool, got %T", value)
	}
	return strconv.FormatBool(b), nil
}

// NumberConverter parses decimal text into one numeric kind.
type NumberConverter struct {
	Type reflect.Type
}

func (c NumberConverter) FromString(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	out := reflect.New(c.Type).Elem()
	switch c.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, c.Type.Bits())
		if err != nil {
			return nil, err
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, c.Type.Bits())
		if err != nil {
			return nil, err
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, c.Type.Bits())
		if err != nil {
			return nil, err
		}
		out.SetFloat(f)
	default:
		return nil, fmt.Errorf("%s is not numeric", c.Type)
	}
	return out.Interface(), nil
}

func (c NumberConverter) ToString(value any) (string, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Type() != c.Type {
		return "", fmt.Errorf("expected %s, got %T", c.Type, value)
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, c.Type.Bits()), nil
	}
	return "", fmt.Errorf("%s is not numeric", c.Type)
}

// DateConverter formats time.Time values with DateLayout. Location defaults
// to time.Local.
type DateConverter struct {
	Location *time.Location
}

func (c DateConverter) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

func (c DateConverter) FromString(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, text, c.location())
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (c DateConverter) ToString(value any) (string, error) {
	t, ok := value.(time.Time)
	if !ok {
		return "", fmt.Errorf("expected time.Time, got %T", value)
	}
	return t.In(c.location()).Format(DateLayout), nil
}

// DurationConverter uses time.ParseDuration notation.
type DurationConverter struct{}

func (DurationConverter) FromString(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (DurationConverter) ToString(value any) (string, error) {
	d, ok := value.(time.Duration)
	if !ok {
		return "", fmt.Errorf("expected time.Duration, got %T", value)
	}
	return d.String(), nil
}

// kindConverter serves a named type through the converter registered for its
// underlying representation.
type kindConverter struct {
	target reflect.Type
	base   reflect.Type
	inner  Converter
}

func (c kindConverter) FromString(text string) (any, error) {
	value, err := c.inner.FromString(text)
	if err != nil || value == nil {
		return value, err
	}
	return reflect.ValueOf(value).Convert(c.target).Interface(), nil
}

func (c kindConverter) ToString(value any) (string, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Type() != c.target {
		return "", fmt.Errorf("expected %s, got %T", c.target, value)
	}
	return c.inner.ToString(rv.Convert(c.base).Interface())
}

// nonConvertible backs transient options whose type has no converter. Values
// can be held but never rendered as text.
type nonConvertible struct {
	target reflect.Type
}

func (c nonConvertible) FromString(string) (any, error) {
	return nil, fmt.Errorf("%w: %s has no string form", ErrUnsupportedType, c.target)
}

func (c nonConvertible) ToString(any) (string, error) {
	return "", fmt.Errorf("%w: %s has no string form", ErrUnsupportedType, c.target)
}
