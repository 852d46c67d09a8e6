package opts

import (
	"fmt"

	"github.com/goliatone/go-optset/internal/hydrate"
)

// DecodeOption configures Decode.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	flat   bool
	strict bool
}

// DecodeFlat keeps dotted keys as they are instead of nesting them.
func DecodeFlat() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.flat = true
	}
}

// DecodeStrict rejects option keys with no matching struct field.
func DecodeStrict() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.strict = true
	}
}

// Decode hydrates a T from the current option values using its json tags.
// Dotted keys are nested, so `server.port` fills the `port` field of a
// `server` struct. Collections decode as slices.
func Decode[T any](s *Set, options ...DecodeOption) (T, error) {
	return DecodeWith[T](s, nil, options...)
}

// DecodeWith behaves like Decode and runs check on the result.
func DecodeWith[T any](s *Set, check func(*T) error, options ...DecodeOption) (T, error) {
	var zero T
	cfg := decodeConfig{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	snapshot, err := s.Snapshot()
	if err != nil {
		return zero, err
	}

	var decodeOptions []hydrate.Option
	if !cfg.flat {
		decodeOptions = append(decodeOptions, hydrate.Nested())
	}
	if cfg.strict {
		decodeOptions = append(decodeOptions, hydrate.Strict())
	}
	value, err := hydrate.Into[T](s.name, snapshot, decodeOptions...)
	if err != nil {
		return zero, err
	}
	if check != nil {
		if err := check(&value); err != nil {
			return zero, fmt.Errorf("opts: decode set %q: %w", s.name, err)
		}
	}
	return value, nil
}
