package opts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goliatone/go-optset/pkg/activity"
)

// Provider returns the current persistence provider.
func (s *Set) Provider() PersistenceProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// SetProvider replaces the persistence provider and binds it to the set. A
// nil provider installs a TransientProvider.
func (s *Set) SetProvider(provider PersistenceProvider) {
	if provider == nil {
		provider = NewTransientProvider()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	provider.Init(s.name)
	s.provider = provider
}

// Configure passes config to the provider.
func (s *Set) Configure(config any) error {
	start := time.Now()
	s.mu.Lock()
	provider := s.provider
	err := provider.Configure(config)
	s.mu.Unlock()
	s.logPersistence("configure", provider, false, start, err)
	return err
}

// Load reads the backing store into the options. It reports whether the store
// existed. With suppressConversionErrors unset, a conversion failure aborts
// the load with an *AggregateConversionError and leaves every option as it
// was.
func (s *Set) Load(ctx context.Context, suppressConversionErrors bool) (bool, error) {
	start := time.Now()
	s.mu.Lock()
	provider := s.provider
	found, err := provider.Load(ctx, s.cells(), suppressConversionErrors)
	s.mu.Unlock()
	s.logPersistence("load", provider, found, start, err)
	if err != nil {
		return found, err
	}
	s.Emit(ctx, activity.BuildOptionsLoadedEvent(activity.OptionsEventInput{
		ObjectID: s.name,
		Set:      s.name,
		Provider: providerName(provider),
		Metadata: map[string]any{
			"found":    found,
			"suppress": suppressConversionErrors,
		},
	}))
	return found, nil
}

// Save writes every non-transient option to the backing store. With
// nonDefaultOnly set, options still equal to their declared default are
// skipped.
func (s *Set) Save(ctx context.Context, nonDefaultOnly bool) error {
	start := time.Now()
	s.mu.Lock()
	provider := s.provider
	err := provider.Save(ctx, s.cells(), nonDefaultOnly)
	s.mu.Unlock()
	s.logPersistence("save", provider, false, start, err)
	if err != nil {
		return err
	}
	s.emitSaved(ctx, provider, nonDefaultOnly, "")
	return nil
}

// LoadFrom reads options from r using the provider's format.
func (s *Set) LoadFrom(ctx context.Context, r io.Reader, suppressConversionErrors bool) error {
	start := time.Now()
	s.mu.Lock()
	provider, ok := s.provider.(StreamProvider)
	if !ok {
		current := s.provider
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStreamUnsupported, providerName(current))
	}
	err := provider.LoadStream(ctx, r, s.cells(), suppressConversionErrors)
	s.mu.Unlock()
	s.logPersistence("load_stream", provider, true, start, err)
	if err != nil {
		return err
	}
	s.Emit(ctx, activity.BuildOptionsLoadedEvent(activity.OptionsEventInput{
		ObjectID: s.name,
		Set:      s.name,
		Provider: providerName(provider),
		Metadata: map[string]any{
			"stream":   true,
			"suppress": suppressConversionErrors,
		},
	}))
	return nil
}

// SaveTo writes options to w using the provider's format.
func (s *Set) SaveTo(ctx context.Context, w io.Writer, nonDefaultOnly bool) error {
	start := time.Now()
	s.mu.Lock()
	provider, ok := s.provider.(StreamProvider)
	if !ok {
		current := s.provider
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStreamUnsupported, providerName(current))
	}
	err := provider.SaveStream(ctx, w, s.cells(), nonDefaultOnly)
	s.mu.Unlock()
	s.logPersistence("save_stream", provider, false, start, err)
	if err != nil {
		return err
	}
	s.emitSaved(ctx, provider, nonDefaultOnly, "stream")
	return nil
}

// ResetToDefault resets every option, transient ones included, to its
// default.
func (s *Set) ResetToDefault() {
	s.mu.Lock()
	for _, option := range s.options {
		option.reset()
	}
	s.mu.Unlock()
	s.Emit(context.Background(), activity.BuildOptionsResetEvent(activity.OptionsEventInput{
		ObjectID: s.name,
		Set:      s.name,
	}))
}

func (s *Set) emitSaved(ctx context.Context, provider PersistenceProvider, nonDefaultOnly bool, target string) {
	metadata := map[string]any{"non_default_only": nonDefaultOnly}
	if target != "" {
		metadata["target"] = target
	}
	s.Emit(ctx, activity.BuildOptionsSavedEvent(activity.OptionsEventInput{
		ObjectID: s.name,
		Set:      s.name,
		Provider: providerName(provider),
		Metadata: metadata,
	}))
}

func (s *Set) logPersistence(operation string, provider PersistenceProvider, found bool, start time.Time, err error) {
	event := PersistenceLogEvent{
		Set:       s.name,
		Operation: operation,
		Provider:  providerName(provider),
		Found:     found,
		Duration:  time.Since(start),
		Err:       err,
	}
	var aggregate *AggregateConversionError
	if errors.As(err, &aggregate) {
		event.FailedKeys = aggregate.Keys()
	}
	s.cfg.persistenceLog().LogPersistence(event)
}

func providerName(provider PersistenceProvider) string {
	if provider == nil {
		return "none"
	}
	if named, ok := provider.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", provider)
}
