package schemafile

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/state"
	"github.com/goliatone/go-optset/pkg/state/boltstore"
	"github.com/goliatone/go-optset/pkg/state/redisstore"
)

// Schema is a validated document together with the type names it may use.
type Schema struct {
	Document
	types map[string]reflect.Type
}

// Validate checks field constraints, type names and key uniqueness.
func (s *Schema) Validate() error {
	if err := validate.Struct(s.Document); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			problems := make([]string, 0, len(fields))
			for _, field := range fields {
				problems = append(problems, fmt.Sprintf("%s failed %s", field.Namespace(), field.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	seen := make(map[string]struct{}, len(s.Options))
	for _, option := range s.Options {
		if _, ok := s.types[strings.ToLower(option.Type)]; !ok {
			return fmt.Errorf("%w: %q for option %q", ErrUnknownType, option.Type, option.Key)
		}
		if _, dup := seen[option.Key]; dup {
			return fmt.Errorf("%w: duplicate key %q", ErrInvalidDocument, option.Key)
		}
		seen[option.Key] = struct{}{}
	}
	return nil
}

// Descriptors converts the option specs in document order.
func (s *Schema) Descriptors() ([]opts.Descriptor, error) {
	out := make([]opts.Descriptor, 0, len(s.Options))
	for _, option := range s.Options {
		typ, ok := s.types[strings.ToLower(option.Type)]
		if !ok {
			return nil, fmt.Errorf("%w: %q for option %q", ErrUnknownType, option.Type, option.Key)
		}
		d := opts.Descriptor{
			Key:         option.Key,
			Type:        typ,
			Transient:   option.Transient,
			ReadOnly:    option.ReadOnly || option.Collection,
			Collection:  option.Collection,
			Rule:        option.Rule,
			Description: option.Description,
		}
		if option.Default != nil && !option.Collection {
			text := *option.Default
			d.Default = &text
		}
		out = append(out, d)
	}
	return out, nil
}

// BuildProvider builds the persistence provider named by the document. The
// returned closer releases any connection the provider holds and is never nil.
func (s *Schema) BuildProvider(fileOptions ...state.FileOption) (opts.PersistenceProvider, io.Closer, error) {
	spec := s.Document.Provider
	var storeOptions []state.ProviderOption
	if spec.Namespace != "" {
		storeOptions = append(storeOptions, state.WithNamespace(spec.Namespace))
	}
	if spec.Optimistic {
		storeOptions = append(storeOptions, state.WithOptimisticLocking())
	}

	switch strings.ToLower(spec.Kind) {
	case "", "transient":
		return opts.NewTransientProvider(), nopCloser{}, nil
	case "memory":
		return state.NewMemoryProvider(storeOptions...), nopCloser{}, nil
	case "file", "json":
		var provider *state.FileProvider
		if strings.EqualFold(spec.Kind, "json") {
			provider = state.NewJSONProvider(fileOptions...)
		} else {
			provider = state.NewFileProvider(fileOptions...)
		}
		err := provider.Configure(state.FileConfig{
			PersistenceConfig: opts.PersistenceConfig{Name: s.Name},
			Path:              spec.Path,
			Filename:          spec.Filename,
			BackupOnSave:      spec.BackupOnSave,
		})
		if err != nil {
			return nil, nil, err
		}
		return provider, nopCloser{}, nil
	case "bolt":
		path := spec.Path
		if path == "" {
			path = s.Name + ".db"
		}
		db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("schemafile: open bolt %s: %w", path, err)
		}
		var boltOptions []boltstore.Option
		if spec.Bucket != "" {
			boltOptions = append(boltOptions, boltstore.WithBucket(spec.Bucket))
		}
		store := boltstore.New(db, boltOptions...)
		return state.NewStoreProvider(store, append(storeOptions, state.WithProviderName("bolt"))...), db, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: spec.Addr})
		var redisOptions []redisstore.Option
		if spec.Prefix != "" {
			redisOptions = append(redisOptions, redisstore.WithPrefix(spec.Prefix))
		}
		return redisstore.NewProvider(client, redisOptions, storeOptions...), client, nil
	}
	return nil, nil, fmt.Errorf("%w: provider kind %q", ErrInvalidDocument, spec.Kind)
}

// NewSet builds the set described by the document with its provider. Extra
// set options are applied after the provider, so WithProvider overrides it.
func (s *Schema) NewSet(options ...opts.SetOption) (*opts.Set, io.Closer, error) {
	return s.NewSetWithFileOptions(nil, options...)
}

// NewSetWithFileOptions is NewSet with options for file backed providers.
func (s *Schema) NewSetWithFileOptions(fileOptions []state.FileOption, options ...opts.SetOption) (*opts.Set, io.Closer, error) {
	descriptors, err := s.Descriptors()
	if err != nil {
		return nil, nil, err
	}
	provider, closer, err := s.BuildProvider(fileOptions...)
	if err != nil {
		return nil, nil, err
	}
	all := []opts.SetOption{opts.WithProvider(provider)}
	if s.Engine != "" {
		all = append(all, opts.WithEngine(s.Engine))
	}
	all = append(all, options...)
	set, err := opts.NewSet(s.Name, descriptors, all...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return set, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
