// Package hydrate fills structs from option snapshots through their json
// tags.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Option configures Into.
type Option func(*config)

type config struct {
	nested bool
	strict bool
}

// Nested expands dotted keys before decoding, so `server.port` fills the
// `port` field of a `server` struct.
func Nested() Option {
	return func(cfg *config) {
		cfg.nested = true
	}
}

// Strict rejects keys without a matching struct field.
func Strict() Option {
	return func(cfg *config) {
		cfg.strict = true
	}
}

// Into decodes the snapshot of set into a T. The payload is not modified.
func Into[T any](set string, payload map[string]any, options ...Option) (T, error) {
	var result T
	if payload == nil {
		return result, fmt.Errorf("hydrate: payload is nil for set %q", set)
	}
	cfg := config{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.nested {
		expanded, err := Expand(payload)
		if err != nil {
			return result, fmt.Errorf("hydrate: expand keys for set %q: %w", set, err)
		}
		payload = expanded
	}

	buffer, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("hydrate: marshal set %q: %w", set, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if cfg.strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&result); err != nil {
		var zero T
		return zero, fmt.Errorf("hydrate: decode set %q: %w", set, err)
	}
	return result, nil
}

// Expand nests dotted keys: {"a.b": 1} becomes {"a": {"b": 1}}. A key that is
// both a leaf and a prefix of another key is an error.
func Expand(payload map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(payload))
	for _, key := range keys {
		segments := strings.Split(key, ".")
		node := out
		for i, segment := range segments {
			if segment == "" {
				return nil, fmt.Errorf("key %q has an empty segment", key)
			}
			if i == len(segments)-1 {
				if _, exists := node[segment]; exists {
					return nil, fmt.Errorf("key %q collides with a nested key", key)
				}
				node[segment] = payload[key]
				break
			}
			next, exists := node[segment]
			if !exists {
				child := map[string]any{}
				node[segment] = child
				node = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("key %q collides with leaf %q", key, strings.Join(segments[:i+1], "."))
			}
			node = child
		}
	}
	return out, nil
}
