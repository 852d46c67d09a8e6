package openapi

import (
	"fmt"
	"reflect"
	"time"

	opts "github.com/goliatone/go-optset"
)

type generator struct {
	config   generatorConfig
	registry *opts.ConverterRegistry
}

// NewGenerator constructs an OpenAPI-compatible schema generator. The
// document describes a single operation whose request body carries the
// typed values of every option of the set.
func NewGenerator(options ...GeneratorOption) opts.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg, registry: opts.NewConverterRegistry()}
}

// Option returns an opts.SetOption that wires the OpenAPI schema generator
// into a set.
func Option(options ...GeneratorOption) opts.SetOption {
	return opts.WithSchemaGenerator(NewGenerator(options...))
}

func (g generator) Generate(set opts.SetDescription) (opts.SchemaDocument, error) {
	properties := make(map[string]any, len(set.Descriptors))
	for _, d := range set.Descriptors {
		property, err := g.propertySchema(d)
		if err != nil {
			return opts.SchemaDocument{}, err
		}
		properties[d.Key] = property
	}
	root := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	document, err := buildDocument(g.config, set.Name, root)
	if err != nil {
		return opts.SchemaDocument{}, err
	}
	return opts.SchemaDocument{
		Format:   opts.SchemaFormatOpenAPI,
		Set:      set.Name,
		Document: document,
	}, nil
}

func (g generator) propertySchema(d opts.Descriptor) (map[string]any, error) {
	if d.Type == nil {
		return nil, fmt.Errorf("openapi: option %q declares no type", d.Key)
	}
	schema := typeSchema(d.Type)
	if d.Collection {
		schema = map[string]any{
			"type":  "array",
			"items": schema,
		}
	}
	if d.Description != "" {
		schema["description"] = d.Description
	}
	if d.ReadOnly || d.Collection {
		schema["readOnly"] = true
	}
	if d.Default != nil && !d.Collection {
		schema["default"] = g.defaultValue(d.Type, *d.Default)
	}
	if g.config.extensions {
		if d.Transient {
			schema["x-transient"] = true
		}
		if d.Rule != "" {
			schema["x-rule"] = d.Rule
		}
		if d.Collection {
			schema["x-collection"] = true
		}
	}
	return schema, nil
}

// defaultValue renders text as the JSON value of typ. Text that cannot be
// converted, and types rendered as strings, keep the text form.
func (g generator) defaultValue(typ reflect.Type, text string) any {
	if schemaType, _ := typeSchema(typ)["type"].(string); schemaType == "string" {
		return text
	}
	converter, err := g.registry.Lookup(typ)
	if err != nil {
		return text
	}
	value, err := converter.FromString(text)
	if err != nil || value == nil {
		return text
	}
	return value
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

func typeSchema(t reflect.Type) map[string]any {
	switch t {
	case timeType:
		return map[string]any{
			"type":     "string",
			"x-layout": opts.DateLayout,
		}
	case durationType:
		return map[string]any{
			"type":   "string",
			"format": "duration",
		}
	}
	switch t.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint8, reflect.Uint16:
		return map[string]any{"type": "integer", "format": "int32"}
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return map[string]any{"type": "integer", "format": "int64"}
	case reflect.Float32:
		return map[string]any{"type": "number", "format": "float"}
	case reflect.Float64:
		return map[string]any{"type": "number", "format": "double"}
	case reflect.String:
		return map[string]any{"type": "string"}
	default:
		return map[string]any{
			"type":   "string",
			"format": fmt.Sprintf("go:%s", t.String()),
		}
	}
}
