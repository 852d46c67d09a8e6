package state

import (
	"context"
	"fmt"
	"sync"

	opts "github.com/goliatone/go-optset"
)

// StoreConfig configures a StoreProvider. Name, when set, overrides the set
// name bound through Init.
type StoreConfig struct {
	opts.PersistenceConfig
	Namespace  string
	Optimistic bool
}

// StoreProvider adapts a Store to opts.PersistenceProvider. Loads and saves
// go through opts.ApplyStaged and opts.CollectEntries.
type StoreProvider struct {
	mu         sync.Mutex
	store      Store
	ref        Ref
	name       string
	optimistic bool
	meta       Meta
}

// ProviderOption configures a StoreProvider.
type ProviderOption func(*StoreProvider)

// WithNamespace prefixes the storage key of the set.
func WithNamespace(namespace string) ProviderOption {
	return func(p *StoreProvider) {
		p.ref.Namespace = namespace
	}
}

// WithOptimisticLocking sends the ETag of the last load or save with every
// save, so a concurrent writer makes the save fail with ErrETagMismatch.
func WithOptimisticLocking() ProviderOption {
	return func(p *StoreProvider) {
		p.optimistic = true
	}
}

// WithProviderName overrides the name reported in logs and events.
func WithProviderName(name string) ProviderOption {
	return func(p *StoreProvider) {
		if name != "" {
			p.name = name
		}
	}
}

func NewStoreProvider(store Store, options ...ProviderOption) *StoreProvider {
	p := &StoreProvider{store: store, name: "store"}
	for _, opt := range options {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// NewMemoryProvider returns a provider backed by a fresh MemoryStore.
func NewMemoryProvider(options ...ProviderOption) *StoreProvider {
	options = append([]ProviderOption{WithProviderName("memory")}, options...)
	return NewStoreProvider(NewMemoryStore(), options...)
}

func (p *StoreProvider) Init(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ref.Set == "" {
		p.ref.Set = name
	}
}

func (p *StoreProvider) Configure(config any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch c := config.(type) {
	case nil:
	case opts.PersistenceConfig:
		p.applyName(c.Name)
	case *opts.PersistenceConfig:
		if c != nil {
			p.applyName(c.Name)
		}
	case StoreConfig:
		p.applyStoreConfig(c)
	case *StoreConfig:
		if c != nil {
			p.applyStoreConfig(*c)
		}
	default:
		return fmt.Errorf("%w: %s provider accepts PersistenceConfig or StoreConfig, got %T", opts.ErrConfiguration, p.name, config)
	}
	return nil
}

func (p *StoreProvider) applyName(name string) {
	if name != "" {
		p.ref.Set = name
	}
}

func (p *StoreProvider) applyStoreConfig(c StoreConfig) {
	p.applyName(c.Name)
	p.ref.Namespace = c.Namespace
	p.optimistic = c.Optimistic
}

// Load applies the stored record. A missing record leaves every option
// untouched and reports false.
func (p *StoreProvider) Load(ctx context.Context, cells []opts.Cell, suppressConversionErrors bool) (bool, error) {
	if p.store == nil {
		return false, fmt.Errorf("%w: %s provider has no store", opts.ErrConfiguration, p.name)
	}
	p.mu.Lock()
	ref := p.ref
	p.mu.Unlock()

	record, ok, err := p.store.Load(ctx, ref)
	if err != nil {
		return false, p.storageError("load", ref, err)
	}
	if !ok {
		return false, nil
	}
	if err := opts.ApplyStaged(cells, record.Values, suppressConversionErrors); err != nil {
		return true, err
	}
	p.mu.Lock()
	p.meta = cloneMeta(record.Meta)
	p.mu.Unlock()
	return true, nil
}

func (p *StoreProvider) Save(ctx context.Context, cells []opts.Cell, nonDefaultOnly bool) error {
	if p.store == nil {
		return fmt.Errorf("%w: %s provider has no store", opts.ErrConfiguration, p.name)
	}
	entries, err := opts.CollectEntries(cells, nonDefaultOnly)
	if err != nil {
		return err
	}
	record := RecordFromEntries(entries)

	p.mu.Lock()
	ref := p.ref
	if p.optimistic {
		record.Meta.ETag = p.meta.ETag
	}
	p.mu.Unlock()

	meta, err := p.store.Save(ctx, ref, record)
	if err != nil {
		return p.storageError("save", ref, err)
	}
	p.mu.Lock()
	p.meta = cloneMeta(meta)
	p.mu.Unlock()
	return nil
}

// Meta returns the metadata of the last loaded or saved snapshot.
func (p *StoreProvider) Meta() Meta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneMeta(p.meta)
}

// Ref returns the storage reference the provider reads and writes.
func (p *StoreProvider) Ref() Ref {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref
}

// Store returns the backing store.
func (p *StoreProvider) Store() Store { return p.store }

func (p *StoreProvider) Name() string { return p.name }

func (p *StoreProvider) storageError(op string, ref Ref, err error) error {
	id, idErr := ref.Identifier()
	if idErr != nil {
		id = ref.Set
	}
	return &opts.StorageError{Op: p.name + " " + op, Path: id, Err: err}
}

// Mutate loads set, applies fn and saves every option. With optimistic
// locking a concurrent save between the load and the save surfaces as
// ErrETagMismatch and leaves the store unchanged.
func Mutate(ctx context.Context, set *opts.Set, fn func(*opts.Set) error) error {
	if set == nil {
		return fmt.Errorf("state: set is required")
	}
	if fn == nil {
		return fmt.Errorf("state: mutator is required")
	}
	if _, err := set.Load(ctx, false); err != nil {
		return err
	}
	if err := fn(set); err != nil {
		return err
	}
	return set.Save(ctx, false)
}
