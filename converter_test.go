package opts

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type labeler interface {
	Label() string
}

type fullLabeler interface {
	labeler
	Full() string
}

type badge struct{ name string }

func (b badge) Label() string { return b.name }
func (b badge) Full() string  { return "badge:" + b.name }

type plainLabel string

func (p plainLabel) Label() string { return string(p) }

type port int

func labelConverter(prefix string) Converter {
	return ConverterFuncs{
		From: func(text string) (any, error) { return badge{name: strings.TrimPrefix(text, prefix)}, nil },
		To:   func(value any) (string, error) { return prefix + value.(labeler).Label(), nil },
	}
}

func TestBoolConverter(t *testing.T) {
	cases := map[string]any{
		"yes": true, "TRUE": true, "1": true,
		"No": false, "false": false, "0": false,
		"": nil,
	}
	for text, want := range cases {
		got, err := BoolConverter{}.FromString(text)
		if err != nil || got != want {
			t.Fatalf("%q: expected %v, got %v (%v)", text, want, got, err)
		}
	}
	if _, err := (BoolConverter{}).FromString("maybe"); err == nil {
		t.Fatalf("expected failure for maybe")
	}
}

func TestNumberConverter(t *testing.T) {
	intConv := NumberConverter{Type: reflect.TypeOf(int8(0))}
	if _, err := intConv.FromString("128"); err == nil {
		t.Fatalf("expected overflow for int8")
	}
	if _, err := intConv.FromString("1,5"); err == nil {
		t.Fatalf("expected locale formatted text rejected")
	}
	if got, err := intConv.FromString(""); err != nil || got != nil {
		t.Fatalf("expected nil for empty text, got %v (%v)", got, err)
	}
	floatConv := NumberConverter{Type: reflect.TypeOf(0.0)}
	got, err := floatConv.FromString("2.5e3")
	if err != nil || got != 2500.0 {
		t.Fatalf("expected 2500, got %v (%v)", got, err)
	}
	if _, err := floatConv.ToString(int64(1)); err == nil {
		t.Fatalf("expected ToString to reject foreign kinds")
	}
}

func TestDateConverter(t *testing.T) {
	conv := DateConverter{Location: time.UTC}
	got, err := conv.FromString("2024-03-01 12:00:00.250")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 250*int(time.Millisecond), time.UTC)
	if !got.(time.Time).Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	text, err := conv.ToString(want)
	if err != nil || text != "2024-03-01 12:00:00.250" {
		t.Fatalf("expected layout text, got %q (%v)", text, err)
	}
	if _, err := conv.FromString("2024-03-01T12:00:00Z"); err == nil {
		t.Fatalf("expected RFC3339 text rejected")
	}
	if got, err := conv.FromString(""); err != nil || got != nil {
		t.Fatalf("expected nil for empty text, got %v (%v)", got, err)
	}
}

func TestRegistryRegister(t *testing.T) {
	registry := NewConverterRegistry()
	if err := registry.Register(reflect.TypeOf(0), StringConverter{}); err == nil {
		t.Fatalf("expected duplicate registration rejected")
	}
	if err := RegisterType[labeler](registry, labelConverter("l:")); err != nil {
		t.Fatalf("register interface: %v", err)
	}
	types := registry.Types()
	if types[len(types)-1] != reflect.TypeOf((*labeler)(nil)).Elem() {
		t.Fatalf("expected registration order kept, got %v", types)
	}

	clone := registry.Clone()
	if err := clone.Register(reflect.TypeOf(badge{}), labelConverter("b:")); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if len(registry.Types()) == len(clone.Types()) {
		t.Fatalf("expected clone to be independent")
	}
}

func TestRegistryLookupPrecedence(t *testing.T) {
	registry := NewConverterRegistry()
	if err := RegisterType[labeler](registry, labelConverter("l:")); err != nil {
		t.Fatalf("register labeler: %v", err)
	}
	if err := RegisterType[fullLabeler](registry, labelConverter("f:")); err != nil {
		t.Fatalf("register fullLabeler: %v", err)
	}

	conv, err := registry.Lookup(reflect.TypeOf(badge{}))
	if err != nil {
		t.Fatalf("lookup badge: %v", err)
	}
	if text, _ := conv.ToString(badge{name: "x"}); text != "f:x" {
		t.Fatalf("expected most specific interface, got %q", text)
	}

	conv, err = registry.Lookup(reflect.TypeOf(plainLabel("")))
	if err != nil {
		t.Fatalf("lookup plainLabel: %v", err)
	}
	if text, _ := conv.ToString(plainLabel("y")); text != "y" {
		t.Fatalf("expected named string to use the string converter, got %q", text)
	}

	exact := NewConverterRegistry()
	if err := RegisterType[labeler](exact, labelConverter("l:")); err != nil {
		t.Fatalf("register labeler: %v", err)
	}
	if err := exact.Register(reflect.TypeOf(badge{}), labelConverter("b:")); err != nil {
		t.Fatalf("register badge: %v", err)
	}
	conv, _ = exact.Lookup(reflect.TypeOf(badge{}))
	if text, _ := conv.ToString(badge{name: "z"}); text != "b:z" {
		t.Fatalf("expected exact match first, got %q", text)
	}
}

func TestRegistryNamedKindFallback(t *testing.T) {
	conv, err := NewConverterRegistry().Lookup(reflect.TypeOf(port(0)))
	if err != nil {
		t.Fatalf("lookup port: %v", err)
	}
	value, err := conv.FromString("8080")
	if err != nil || value != port(8080) {
		t.Fatalf("expected port(8080), got %v (%T) %v", value, value, err)
	}
	text, err := conv.ToString(port(9))
	if err != nil || text != "9" {
		t.Fatalf("expected 9, got %q (%v)", text, err)
	}
}

func TestRegistryUnsupported(t *testing.T) {
	registry := NewEmptyConverterRegistry()
	for _, typ := range []reflect.Type{nil, reflect.TypeOf(0), reflect.TypeOf(struct{}{}), reflect.TypeOf([]int{})} {
		if _, err := registry.Lookup(typ); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("expected ErrUnsupportedType for %v, got %v", typ, err)
		}
	}
}
