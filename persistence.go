package opts

import (
	"context"
	"fmt"
	"io"
)

// PersistenceConfig is the base provider configuration. It only carries the
// identity of the owning set.
type PersistenceConfig struct {
	Name string
}

// PersistenceProvider loads and saves the options of one set. A provider must
// work with defaults when Configure is never called.
type PersistenceProvider interface {
	Init(name string)
	Configure(config any) error
	Load(ctx context.Context, cells []Cell, suppressConversionErrors bool) (bool, error)
	Save(ctx context.Context, cells []Cell, nonDefaultOnly bool) error
}

// StreamProvider is implemented by providers that can read and write the
// same format over arbitrary streams.
type StreamProvider interface {
	PersistenceProvider
	LoadStream(ctx context.Context, r io.Reader, cells []Cell, suppressConversionErrors bool) error
	SaveStream(ctx context.Context, w io.Writer, cells []Cell, nonDefaultOnly bool) error
}

// Cell is the view of an option handed to a provider. Its methods do not
// lock: the owning set holds its lock for the duration of the provider call,
// so cells must not be retained afterwards.
type Cell struct {
	option *Option
}

func (c Cell) Key() string { return c.option.key }

func (c Cell) Transient() bool { return c.option.transient }

func (c Cell) Collection() bool { return c.option.container != nil }

// StringValue returns the current text; ok is false for an absent value.
func (c Cell) StringValue() (text string, ok bool, err error) {
	return c.option.getString()
}

// DefaultValue returns the default text; set reports whether a default was
// declared and ok whether it is non-nil.
func (c Cell) DefaultValue() (text string, set bool, ok bool) {
	if !c.option.defaultSet {
		return "", false, false
	}
	if c.option.defaultValue == nil {
		return "", true, false
	}
	return *c.option.defaultValue, true, true
}

// Check reports whether text would convert, without changing the option.
func (c Cell) Check(text string) error {
	return c.option.check(text)
}

// Commit stores text as the option's string value.
func (c Cell) Commit(text string) {
	c.option.setString(&text)
}

// Reset restores the option's default.
func (c Cell) Reset() {
	c.option.reset()
}

// Entry is one persisted key and its text.
type Entry struct {
	Key   string
	Value string
}

// ApplyStaged commits staged text to cells in three steps. First every
// non-transient cell present in staged is checked. Any failure aborts with an
// *AggregateConversionError and nothing is changed, unless suppress is set,
// in which case failing keys are treated as absent. Second, present cells
// are committed, and third, absent cells are reset to their defaults.
// Collection cells are never loaded.
func ApplyStaged(cells []Cell, staged map[string]string, suppress bool) error {
	var (
		failedKeys []string
		failures   []error
	)
	for _, cell := range cells {
		if cell.Transient() || cell.Collection() {
			continue
		}
		text, present := staged[cell.Key()]
		if !present {
			continue
		}
		if err := cell.Check(text); err != nil {
			failedKeys = append(failedKeys, cell.Key())
			failures = append(failures, err)
		}
	}

	if len(failedKeys) > 0 {
		if !suppress {
			return newAggregateConversionError(failedKeys, failures)
		}
		trimmed := make(map[string]string, len(staged))
		for key, text := range staged {
			trimmed[key] = text
		}
		for _, key := range failedKeys {
			delete(trimmed, key)
		}
		staged = trimmed
	}

	for _, cell := range cells {
		if cell.Transient() || cell.Collection() {
			continue
		}
		if text, present := staged[cell.Key()]; present {
			cell.Commit(text)
			continue
		}
		cell.Reset()
	}
	return nil
}

// CollectEntries returns the entries to persist in cell order. Under
// nonDefaultOnly a cell is skipped only when it has a declared default equal
// to its current text; two absent values are equal. Absent values are
// written as empty text.
func CollectEntries(cells []Cell, nonDefaultOnly bool) ([]Entry, error) {
	entries := make([]Entry, 0, len(cells))
	for _, cell := range cells {
		if cell.Transient() {
			continue
		}
		text, _, err := cell.StringValue()
		if err != nil {
			return nil, fmt.Errorf("opts: render %q: %w", cell.Key(), err)
		}
		if nonDefaultOnly {
			unchanged, err := cell.option.isDefault()
			if err != nil {
				return nil, fmt.Errorf("opts: render %q: %w", cell.Key(), err)
			}
			if unchanged {
				continue
			}
		}
		entries = append(entries, Entry{Key: cell.Key(), Value: text})
	}
	return entries, nil
}

// TransientProvider keeps nothing. Save is a no-op and Load reports an
// existing store without touching any option.
type TransientProvider struct{}

// NewTransientProvider returns the default provider of a set.
func NewTransientProvider() *TransientProvider {
	return &TransientProvider{}
}

func (*TransientProvider) Init(string) {}

func (*TransientProvider) Configure(config any) error {
	switch config.(type) {
	case PersistenceConfig, *PersistenceConfig, nil:
		return nil
	}
	return fmt.Errorf("%w: transient provider accepts PersistenceConfig, got %T", ErrConfiguration, config)
}

func (*TransientProvider) Load(context.Context, []Cell, bool) (bool, error) {
	return true, nil
}

func (*TransientProvider) Save(context.Context, []Cell, bool) error {
	return nil
}

func (*TransientProvider) Name() string { return "transient" }
