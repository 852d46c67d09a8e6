// Package accessor exposes the options of a set by key. It enforces the
// read-only flag, falls back to zero values for absent primitives and emits an
// option.updated activity event for every successful write.
package accessor

import (
	"context"
	"fmt"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/activity"
)

// Option configures an Accessor.
type Option func(*Accessor)

// WithActor stamps actor and tenant identifiers on emitted events.
func WithActor(actorID, tenantID string) Option {
	return func(a *Accessor) {
		a.actorID = actorID
		a.tenantID = tenantID
	}
}

// WithProviderName overrides the provider recorded on emitted events.
func WithProviderName(name string) Option {
	return func(a *Accessor) {
		a.provider = name
	}
}

// Accessor reads and writes the options of one set.
type Accessor struct {
	set      *opts.Set
	actorID  string
	tenantID string
	provider string
}

// New returns an accessor bound to set.
func New(set *opts.Set, options ...Option) *Accessor {
	a := &Accessor{set: set}
	for _, opt := range options {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// OptionSet returns the underlying options set.
func (a *Accessor) OptionSet() *opts.Set { return a.set }

// Get returns the typed value of key, nil when absent.
func (a *Accessor) Get(key string) (any, error) {
	return a.set.Value(key)
}

// Set assigns the typed value of key. Read-only options are rejected with
// opts.ErrReadOnly.
func (a *Accessor) Set(ctx context.Context, key string, value any) error {
	option, err := a.writable(key)
	if err != nil {
		return err
	}
	previous, _ := option.Value()
	if err := option.SetValue(value); err != nil {
		return err
	}
	a.emitUpdated(ctx, key, previous, value)
	return nil
}

// SetString assigns key from its textual form. The text is checked against
// the option's converter and rule first, so malformed input leaves the option
// unchanged.
func (a *Accessor) SetString(ctx context.Context, key, text string) error {
	option, err := a.writable(key)
	if err != nil {
		return err
	}
	if err := option.Check(text); err != nil {
		return err
	}
	var previous any
	if current, ok, err := option.StringValue(); err == nil && ok {
		previous = current
	}
	option.SetStringValue(text)
	a.emitUpdated(ctx, key, previous, text)
	return nil
}

func (a *Accessor) writable(key string) (*opts.Option, error) {
	option, ok := a.set.Option(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", opts.ErrUnknownKey, key)
	}
	if option.ReadOnly() {
		return nil, fmt.Errorf("%w: %q", opts.ErrReadOnly, key)
	}
	return option, nil
}

func (a *Accessor) emitUpdated(ctx context.Context, key string, previous, next any) {
	provider := a.provider
	if provider == "" {
		if named, ok := a.set.Provider().(interface{ Name() string }); ok {
			provider = named.Name()
		}
	}
	a.set.Emit(ctx, activity.BuildOptionUpdatedEvent(activity.OptionsEventInput{
		ActorID:  a.actorID,
		TenantID: a.tenantID,
		Set:      a.set.Name(),
		Key:      key,
		Provider: provider,
		OldValue: previous,
		NewValue: next,
	}))
}
