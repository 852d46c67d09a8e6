package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrNoLayers = errors.New("state: layered store has no layers")

// Layer is one store in a LayeredStore. Higher priorities override lower
// ones. Namespace, when set, replaces the namespace of the loaded Ref for
// this layer only, so a `tenant/acme` layer can sit above a shared one.
type Layer struct {
	Name      string
	Priority  int
	Namespace string
	Store     Store
}

func (l Layer) ref(ref Ref) Ref {
	if l.Namespace != "" {
		ref.Namespace = l.Namespace
	}
	return ref
}

// LayeredStore merges the records of several stores. A key takes its value
// from the strongest layer holding it. Saves go to the strongest layer only.
type LayeredStore struct {
	ordered []Layer
}

// NewLayeredStore orders layers from strongest to weakest. Peers keep their
// relative order and later layers with a duplicate name are dropped.
func NewLayeredStore(layers ...Layer) (*LayeredStore, error) {
	filtered := make([]Layer, 0, len(layers))
	seen := map[string]struct{}{}
	for i, layer := range layers {
		if layer.Store == nil {
			return nil, fmt.Errorf("state: layer %d has no store", i)
		}
		if layer.Name == "" {
			layer.Name = fmt.Sprintf("layer%d", i)
		}
		if _, exists := seen[layer.Name]; exists {
			continue
		}
		seen[layer.Name] = struct{}{}
		filtered = append(filtered, layer)
	}
	if len(filtered) == 0 {
		return nil, ErrNoLayers
	}
	slices.SortStableFunc(filtered, func(a, b Layer) int {
		switch {
		case a.Priority > b.Priority:
			return -1
		case a.Priority < b.Priority:
			return 1
		}
		return 0
	})
	return &LayeredStore{ordered: filtered}, nil
}

// NewLayeredProvider returns a provider reading the merged layers.
func NewLayeredProvider(layers []Layer, options ...ProviderOption) (*StoreProvider, error) {
	store, err := NewLayeredStore(layers...)
	if err != nil {
		return nil, err
	}
	options = append([]ProviderOption{WithProviderName("layered")}, options...)
	return NewStoreProvider(store, options...), nil
}

// Layers returns the layers from strongest to weakest.
func (s *LayeredStore) Layers() []Layer {
	return slices.Clone(s.ordered)
}

// Strongest returns the layer receiving saves.
func (s *LayeredStore) Strongest() Layer {
	return s.ordered[0]
}

// Load reports ok when any layer holds a record. Meta is the strongest
// layer's metadata, so optimistic saves compare against the written record;
// Extra["layers"] lists the layers that contributed, strongest first.
func (s *LayeredStore) Load(ctx context.Context, ref Ref) (Record, bool, error) {
	merged := Record{Values: map[string]string{}}
	var found []string
	for i, layer := range s.ordered {
		record, ok, err := layer.Store.Load(ctx, layer.ref(ref))
		if err != nil {
			return Record{}, false, fmt.Errorf("state: layer %s: %w", layer.Name, err)
		}
		if !ok {
			continue
		}
		found = append(found, layer.Name)
		if i == 0 {
			merged.Meta = cloneMeta(record.Meta)
		}
		for _, entry := range record.Entries() {
			if _, exists := merged.Values[entry.Key]; exists {
				continue
			}
			merged.Values[entry.Key] = entry.Value
			merged.Order = append(merged.Order, entry.Key)
		}
	}
	if len(found) == 0 {
		return Record{}, false, nil
	}
	if merged.Meta.Extra == nil {
		merged.Meta.Extra = map[string]string{}
	}
	merged.Meta.Extra["layers"] = strings.Join(found, ",")
	return merged, true, nil
}

// Save writes record to the strongest layer.
func (s *LayeredStore) Save(ctx context.Context, ref Ref, record Record) (Meta, error) {
	layer := s.Strongest()
	record.Meta.Extra = cloneExtra(record.Meta.Extra)
	delete(record.Meta.Extra, "layers")
	meta, err := layer.Store.Save(ctx, layer.ref(ref), record)
	if err != nil {
		return meta, fmt.Errorf("state: layer %s: %w", layer.Name, err)
	}
	return meta, nil
}
