package opts

import (
	"context"

	"github.com/goliatone/go-optset/pkg/activity"
)

// WithActivityHooks attaches activity hooks to the set. Hooks are cloned and
// nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) SetOption {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *setConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on events that carry none.
func WithActivityChannel(channel string) SetOption {
	return func(cfg *setConfig) {
		cfg.activityChannel = channel
	}
}

// WithActivityVerbs restricts emission to the given verbs.
func WithActivityVerbs(verbs ...string) SetOption {
	normalized := append([]string(nil), verbs...)
	return func(cfg *setConfig) {
		cfg.activityVerbs = normalized
	}
}

// ActivityHooks returns a cloned slice of the hooks configured on the set.
func (s *Set) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return cloneActivityHooks(s.cfg.activityHooks)
}

// Emit forwards event to the configured hooks. Hook failures are reported to
// the persistence logger and never returned to the caller of the operation
// that produced the event.
func (s *Set) Emit(ctx context.Context, event activity.Event) {
	if s == nil || !s.emitter.Accepts(event.Verb) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.cfg.persistenceLog().LogPersistence(PersistenceLogEvent{
			Set:       s.name,
			Operation: "emit:" + event.Verb,
			Err:       err,
		})
	}
}

func newActivityEmitter(cfg setConfig) *activity.Emitter {
	return activity.NewEmitter(cfg.activityHooks, activity.Config{
		Enabled: len(cfg.activityHooks) > 0,
		Channel: cfg.activityChannel,
		Verbs:   cfg.activityVerbs,
	})
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
