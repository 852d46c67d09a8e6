package opts

import (
	"reflect"
)

// FieldDescriptor is the flattened, serialisable form of a Descriptor.
type FieldDescriptor struct {
	Key         string  `json:"key"`
	Type        string  `json:"type"`
	Default     *string `json:"default,omitempty"`
	Transient   bool    `json:"transient,omitempty"`
	ReadOnly    bool    `json:"read_only,omitempty"`
	Collection  bool    `json:"collection,omitempty"`
	Rule        string  `json:"rule,omitempty"`
	Description string  `json:"description,omitempty"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(set SetDescription) (SchemaDocument, error) {
	fields := make([]FieldDescriptor, 0, len(set.Descriptors))
	for _, d := range set.Descriptors {
		fields = append(fields, describeField(d))
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Set:      set.Name,
		Document: fields,
	}, nil
}

func describeField(d Descriptor) FieldDescriptor {
	field := FieldDescriptor{
		Key:         d.Key,
		Type:        typeName(d.Type),
		Transient:   d.Transient,
		ReadOnly:    d.ReadOnly || d.Collection,
		Collection:  d.Collection,
		Rule:        d.Rule,
		Description: d.Description,
	}
	if d.Collection {
		field.Type = "[]" + field.Type
	}
	if d.Default != nil && !d.Collection {
		text := *d.Default
		field.Default = &text
	}
	return field
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

// Schema renders the set declarations with the configured generator, or the
// descriptor generator when none was configured.
func (s *Set) Schema() (SchemaDocument, error) {
	generator := s.cfg.schemaGenerator
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	return generator.Generate(SetDescription{
		Name:        s.name,
		Descriptors: s.Descriptors(),
	})
}
