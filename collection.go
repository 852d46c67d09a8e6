package opts

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Container is the ordered backing store of a collection option. Inserts
// must reject nil and elements not assignable to ElementType.
type Container interface {
	Add(element any) error
	Remove() (any, bool)
	Peek() (any, bool)
	Len() int
	Values() []any
	Clear()
	ElementType() reflect.Type
}

// ContainerFactory builds an empty container for the element type.
type ContainerFactory func(elem reflect.Type) Container

// Queue is the default FIFO container.
type Queue struct {
	mu       sync.Mutex
	elem     reflect.Type
	elements []any
}

// NewQueue returns an empty queue accepting elements of type elem.
func NewQueue(elem reflect.Type) *Queue {
	return &Queue{elem: elem}
}

// NewQueueContainer is the ContainerFactory for Queue.
func NewQueueContainer(elem reflect.Type) Container {
	return NewQueue(elem)
}

func (q *Queue) ElementType() reflect.Type { return q.elem }

// Add appends element at the tail.
func (q *Queue) Add(element any) error {
	if err := q.accepts(element); err != nil {
		return err
	}
	q.mu.Lock()
	q.elements = append(q.elements, element)
	q.mu.Unlock()
	return nil
}

// AddAll appends every element, or none when any element is rejected.
func (q *Queue) AddAll(elements ...any) error {
	for _, element := range elements {
		if err := q.accepts(element); err != nil {
			return err
		}
	}
	q.mu.Lock()
	q.elements = append(q.elements, elements...)
	q.mu.Unlock()
	return nil
}

// Remove takes the head element.
func (q *Queue) Remove() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.elements) == 0 {
		return nil, false
	}
	head := q.elements[0]
	q.elements[0] = nil
	q.elements = q.elements[1:]
	return head, true
}

func (q *Queue) Peek() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.elements) == 0 {
		return nil, false
	}
	return q.elements[0], true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.elements)
}

// Values returns a copy of the elements, head first.
func (q *Queue) Values() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]any(nil), q.elements...)
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.elements = nil
	q.mu.Unlock()
}

// MarshalJSON renders the queue as a JSON array.
func (q *Queue) MarshalJSON() ([]byte, error) {
	values := q.Values()
	if values == nil {
		values = []any{}
	}
	return json.Marshal(values)
}

func (q *Queue) accepts(element any) error {
	if element == nil {
		return invalidValue("", "collections cannot hold nil elements")
	}
	if q.elem != nil && !reflect.TypeOf(element).AssignableTo(q.elem) {
		return invalidValue("", "element of type %T is not assignable to %s", element, q.elem)
	}
	return nil
}

// EscapeElement prefixes every ':' and '\' with '\'.
func EscapeElement(s string) string {
	if !strings.ContainsAny(s, `:\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if r == ':' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeElement reverses EscapeElement. A backslash not followed by ':' or
// '\' is kept as is.
func UnescapeElement(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == ':' || s[i+1] == '\\') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// JoinElements escapes each element and joins them with ':'.
func JoinElements(elements []string) string {
	escaped := make([]string, len(elements))
	for i, element := range elements {
		escaped[i] = EscapeElement(element)
	}
	return strings.Join(escaped, ":")
}

// SplitElements splits a JoinElements result on unescaped ':' and unescapes
// each field. The empty string yields no elements.
func SplitElements(s string) []string {
	if s == "" {
		return nil
	}
	var (
		fields  []string
		current strings.Builder
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (s[i+1] == ':' || s[i+1] == '\\'):
			i++
			current.WriteByte(s[i])
		case c == ':':
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	return append(fields, current.String())
}

// collectionConverter renders a container through the element converter.
// There is no text to container path.
type collectionConverter struct {
	elem      reflect.Type
	converter Converter
}

func (c collectionConverter) FromString(string) (any, error) {
	return nil, fmt.Errorf("collection options cannot be parsed from text")
}

func (c collectionConverter) ToString(value any) (string, error) {
	container, ok := value.(Container)
	if !ok {
		return "", invalidValue("", "expected Container, got %T", value)
	}
	values := container.Values()
	parts := make([]string, 0, len(values))
	for i, element := range values {
		if element == nil {
			return "", invalidValue("", "collection element %d is nil", i)
		}
		if c.elem != nil && !reflect.TypeOf(element).AssignableTo(c.elem) {
			return "", invalidValue("", "collection element %d of type %T is not %s", i, element, c.elem)
		}
		text, err := c.converter.ToString(element)
		if err != nil {
			return "", &ConversionError{Text: fmt.Sprint(element), Err: err}
		}
		parts = append(parts, text)
	}
	return JoinElements(parts), nil
}
