// Package schemafile reads declarative option sets from YAML, JSON or TOML
// documents:
//
//	name: server
//	engine: expr
//	options:
//	  - key: port
//	    type: int
//	    default: "8080"
//	    rule: value > 0 && value < 65536
//	  - key: peers
//	    type: string
//	    collection: true
//	provider:
//	  kind: file
//	  path: /etc/myapp
//	  backup_on_save: true
//
// Documents are validated before any descriptor is built.
package schemafile

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	opts "github.com/goliatone/go-optset"
)

var (
	ErrInvalidDocument = errors.New("schemafile: invalid document")
	ErrUnknownType     = errors.New("schemafile: unknown option type")
)

// EnvPrefix is applied to environment overrides of document fields.
const EnvPrefix = "OPTSET"

// Document is the decoded form of a schema file.
type Document struct {
	Name     string       `mapstructure:"name" json:"name" validate:"required,optkey"`
	Engine   string       `mapstructure:"engine" json:"engine,omitempty" validate:"omitempty,oneof=expr cel js"`
	Options  []OptionSpec `mapstructure:"options" json:"options" validate:"dive"`
	Provider ProviderSpec `mapstructure:"provider" json:"provider"`
}

// OptionSpec declares one option.
type OptionSpec struct {
	Key         string  `mapstructure:"key" json:"key" validate:"required,optkey"`
	Type        string  `mapstructure:"type" json:"type" validate:"required"`
	Default     *string `mapstructure:"default" json:"default,omitempty"`
	Transient   bool    `mapstructure:"transient" json:"transient,omitempty"`
	ReadOnly    bool    `mapstructure:"read_only" json:"read_only,omitempty"`
	Collection  bool    `mapstructure:"collection" json:"collection,omitempty"`
	Rule        string  `mapstructure:"rule" json:"rule,omitempty"`
	Description string  `mapstructure:"description" json:"description,omitempty"`
}

// ProviderSpec selects and configures the persistence provider.
type ProviderSpec struct {
	Kind         string `mapstructure:"kind" json:"kind" validate:"omitempty,oneof=transient memory file json bolt redis"`
	Path         string `mapstructure:"path" json:"path,omitempty"`
	Filename     string `mapstructure:"filename" json:"filename,omitempty"`
	BackupOnSave bool   `mapstructure:"backup_on_save" json:"backup_on_save,omitempty"`
	Namespace    string `mapstructure:"namespace" json:"namespace,omitempty"`
	Bucket       string `mapstructure:"bucket" json:"bucket,omitempty"`
	Addr         string `mapstructure:"addr" json:"addr,omitempty" validate:"required_if=Kind redis"`
	Prefix       string `mapstructure:"prefix" json:"prefix,omitempty"`
	Optimistic   bool   `mapstructure:"optimistic" json:"optimistic,omitempty"`
}

var builtinTypes = map[string]reflect.Type{
	"string":   reflect.TypeOf(""),
	"bool":     reflect.TypeOf(false),
	"int":      reflect.TypeOf(int(0)),
	"int8":     reflect.TypeOf(int8(0)),
	"int16":    reflect.TypeOf(int16(0)),
	"int32":    reflect.TypeOf(int32(0)),
	"int64":    reflect.TypeOf(int64(0)),
	"uint":     reflect.TypeOf(uint(0)),
	"uint8":    reflect.TypeOf(uint8(0)),
	"uint16":   reflect.TypeOf(uint16(0)),
	"uint32":   reflect.TypeOf(uint32(0)),
	"uint64":   reflect.TypeOf(uint64(0)),
	"float32":  reflect.TypeOf(float32(0)),
	"float64":  reflect.TypeOf(float64(0)),
	"duration": reflect.TypeOf(time.Duration(0)),
	"time":     reflect.TypeOf(time.Time{}),
}

// Option configures document loading.
type Option func(*loader)

type loader struct {
	types map[string]reflect.Type
	env   bool
}

// WithType makes name usable as an option type.
func WithType(name string, typ reflect.Type) Option {
	return func(l *loader) {
		l.types[strings.ToLower(name)] = typ
	}
}

// WithEnv lets OPTSET_* environment variables override document fields,
// for instance OPTSET_PROVIDER_PATH.
func WithEnv() Option {
	return func(l *loader) {
		l.env = true
	}
}

func newLoader(options []Option) *loader {
	l := &loader{types: make(map[string]reflect.Type, len(builtinTypes))}
	for name, typ := range builtinTypes {
		l.types[name] = typ
	}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load reads the document at file. The format follows the file extension.
func Load(file string, options ...Option) (*Schema, error) {
	l := newLoader(options)
	v := l.viper()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("schemafile: read %s: %w", file, err)
	}
	return l.decode(v)
}

// Parse reads a document from r. format is one of yaml, json or toml.
func Parse(r io.Reader, format string, options ...Option) (*Schema, error) {
	l := newLoader(options)
	v := l.viper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("schemafile: parse %s: %w", format, err)
	}
	return l.decode(v)
}

func (l *loader) viper() *viper.Viper {
	v := viper.New()
	if l.env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
		for _, key := range []string{"name", "engine", "provider.kind", "provider.path", "provider.filename", "provider.addr", "provider.prefix"} {
			_ = v.BindEnv(key)
		}
	}
	return v
}

func (l *loader) decode(v *viper.Viper) (*Schema, error) {
	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	schema := &Schema{Document: doc, types: l.types}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("optkey", func(fl validator.FieldLevel) bool {
		return opts.ValidateKey(fl.Field().String()) == nil
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}
