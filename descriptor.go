package opts

import (
	"reflect"
	"regexp"
)

var validKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Descriptor declares one option of a set. For collections Type is the
// element type.
type Descriptor struct {
	Key         string
	Type        reflect.Type
	Default     *string
	Transient   bool
	ReadOnly    bool
	Collection  bool
	Container   ContainerFactory
	Rule        string
	Description string
}

// DescriptorOption configures a Descriptor built by Field or CollectionOf.
type DescriptorOption func(*Descriptor)

// Field declares a scalar option of type T.
func Field[T any](key string, options ...DescriptorOption) Descriptor {
	d := Descriptor{Key: key, Type: reflect.TypeOf((*T)(nil)).Elem()}
	for _, opt := range options {
		if opt != nil {
			opt(&d)
		}
	}
	return d
}

// CollectionOf declares a read-only collection option with elements of type T.
func CollectionOf[T any](key string, options ...DescriptorOption) Descriptor {
	d := Field[T](key, options...)
	d.Collection = true
	d.ReadOnly = true
	return d
}

// Default sets the default text of the option.
func Default(text string) DescriptorOption {
	return func(d *Descriptor) {
		d.Default = &text
	}
}

func AsTransient() DescriptorOption {
	return func(d *Descriptor) {
		d.Transient = true
	}
}

func AsReadOnly() DescriptorOption {
	return func(d *Descriptor) {
		d.ReadOnly = true
	}
}

// WithContainer overrides the container used by a collection option.
func WithContainer(factory ContainerFactory) DescriptorOption {
	return func(d *Descriptor) {
		d.Container = factory
	}
}

// Rule attaches a boolean expression checked against non-nil values. The
// expression sees the value as `value` and the option key as `key`.
func Rule(expr string) DescriptorOption {
	return func(d *Descriptor) {
		d.Rule = expr
	}
}

func Describe(text string) DescriptorOption {
	return func(d *Descriptor) {
		d.Description = text
	}
}

// ValidateKey checks key against the allowed charset `[A-Za-z0-9_.-]`.
func ValidateKey(key string) error {
	if validKeyPattern.MatchString(key) {
		return nil
	}
	for _, r := range key {
		if !isKeyRune(r) {
			return &KeyError{Key: key, Char: r}
		}
	}
	return &KeyError{Key: key}
}

func isKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '-':
		return true
	}
	return false
}

func (d Descriptor) clone() Descriptor {
	out := d
	if d.Default != nil {
		text := *d.Default
		out.Default = &text
	}
	return out
}
