package opts

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestCollectionEscapingRoundTrip(t *testing.T) {
	elements := []string{"a:b", `c\d`}
	joined := JoinElements(elements)
	if joined != `a\:b:c\\d` {
		t.Fatalf("expected escaped join, got %q", joined)
	}
	if got := UnescapeElement(EscapeElement("a:b")); got != "a:b" {
		t.Fatalf("expected unescape to recover a:b, got %q", got)
	}
	split := SplitElements(joined)
	if !reflect.DeepEqual(split, elements) {
		t.Fatalf("expected %v, got %v", elements, split)
	}
}

func TestEscapeEdgeCases(t *testing.T) {
	cases := []struct {
		in, escaped string
	}{
		{in: "", escaped: ""},
		{in: "plain", escaped: "plain"},
		{in: ":", escaped: `\:`},
		{in: `\`, escaped: `\\`},
		{in: `\:`, escaped: `\\\:`},
	}
	for _, tc := range cases {
		if got := EscapeElement(tc.in); got != tc.escaped {
			t.Fatalf("escape %q: expected %q, got %q", tc.in, tc.escaped, got)
		}
		if got := UnescapeElement(tc.escaped); got != tc.in {
			t.Fatalf("unescape %q: expected %q, got %q", tc.escaped, tc.in, got)
		}
	}
	if got := UnescapeElement(`a\b`); got != `a\b` {
		t.Fatalf("expected lone backslash kept, got %q", got)
	}
	if got := SplitElements(""); got != nil {
		t.Fatalf("expected no elements for empty text, got %v", got)
	}
	if got := SplitElements("a::b"); !reflect.DeepEqual(got, []string{"a", "", "b"}) {
		t.Fatalf("expected empty middle field, got %v", got)
	}
}

func TestQueueRejectsInvalidElements(t *testing.T) {
	queue := NewQueue(reflect.TypeOf(""))
	if err := queue.Add(nil); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected nil rejected, got %v", err)
	}
	if err := queue.Add(1); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected int rejected, got %v", err)
	}
	if err := queue.AddAll("a", 2); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected AddAll to reject, got %v", err)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected queue unchanged, got %d elements", queue.Len())
	}
}

func TestQueueFIFO(t *testing.T) {
	queue := NewQueue(reflect.TypeOf(0))
	if err := queue.AddAll(1, 2, 3); err != nil {
		t.Fatalf("add all: %v", err)
	}
	if head, ok := queue.Peek(); !ok || head != 1 {
		t.Fatalf("expected head 1, got %v", head)
	}
	if head, ok := queue.Remove(); !ok || head != 1 {
		t.Fatalf("expected remove 1, got %v", head)
	}
	if !reflect.DeepEqual(queue.Values(), []any{2, 3}) {
		t.Fatalf("expected [2 3], got %v", queue.Values())
	}
	data, err := json.Marshal(queue)
	if err != nil || string(data) != "[2,3]" {
		t.Fatalf("expected json array, got %s (%v)", data, err)
	}
	queue.Clear()
	if _, ok := queue.Remove(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestCollectionOption(t *testing.T) {
	set, err := NewSet("net", []Descriptor{
		CollectionOf[string]("hosts", Default("ignored")),
		CollectionOf[time.Duration]("backoff"),
	})
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	hosts, _ := set.Option("hosts")
	if !hosts.IsCollection() || !hosts.ReadOnly() {
		t.Fatalf("expected read-only collection")
	}
	container, _ := hosts.Container()

	text, ok, err := hosts.StringValue()
	if err != nil || !ok || text != "" {
		t.Fatalf("expected empty text for empty collection, got %q ok=%v err=%v", text, ok, err)
	}
	if _, declared := hosts.DefaultValue(); declared {
		t.Fatalf("expected collection default ignored")
	}

	if err := container.Add("a:1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := container.Add(`b\2`); err != nil {
		t.Fatalf("add: %v", err)
	}
	if text, _, _ := hosts.StringValue(); text != `a\:1:b\\2` {
		t.Fatalf("expected live escaped text, got %q", text)
	}
	container.Remove()
	if text, _, _ := hosts.StringValue(); text != `b\\2` {
		t.Fatalf("expected text to follow container, got %q", text)
	}

	if err := hosts.SetValue(NewQueue(reflect.TypeOf(""))); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected SetValue to fail, got %v", err)
	}
	hosts.SetStringValue("x:y")
	hosts.ResetToDefaultValue()
	if text, _, _ := hosts.StringValue(); text != `b\\2` {
		t.Fatalf("expected string setters to be no-ops, got %q", text)
	}
	value, _ := hosts.Value()
	if value != container {
		t.Fatalf("expected value to be the live container")
	}

	backoff, _ := set.Option("backoff")
	c, _ := backoff.Container()
	_ = c.Add(time.Second)
	_ = c.Add(1500 * time.Millisecond)
	if text, _, _ := backoff.StringValue(); text != "1s:1.5s" {
		t.Fatalf("expected element converter output, got %q", text)
	}
}

type nilContainer struct{ *Queue }

func (nilContainer) Values() []any { return []any{"a", nil} }

func TestCollectionNilElement(t *testing.T) {
	set, err := NewSet("net", []Descriptor{
		CollectionOf[string]("hosts", WithContainer(func(elem reflect.Type) Container {
			return nilContainer{NewQueue(elem)}
		})),
	})
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	hosts, _ := set.Option("hosts")
	if _, _, err := hosts.StringValue(); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected nil element error, got %v", err)
	}
}
