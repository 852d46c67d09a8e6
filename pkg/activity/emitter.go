package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "options"

// Config controls activity emission defaults supplied by DI/config. Verbs,
// when non-empty, restricts emission to the listed verbs. Metadata entries
// are added to every event that does not already carry them.
type Config struct {
	Enabled  bool
	Channel  string
	Verbs    []string
	Metadata map[string]any
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	channel  string
	verbs    map[string]struct{}
	metadata map[string]any
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	normalizedHooks := cloneHooks(hooks)
	var verbs map[string]struct{}
	for _, verb := range cfg.Verbs {
		verb = strings.TrimSpace(verb)
		if verb == "" {
			continue
		}
		if verbs == nil {
			verbs = map[string]struct{}{}
		}
		verbs[verb] = struct{}{}
	}
	return &Emitter{
		hooks:    normalizedHooks,
		enabled:  cfg.Enabled && len(normalizedHooks) > 0,
		channel:  channel,
		verbs:    verbs,
		metadata: cloneMap(cfg.Metadata),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Accepts reports whether an event with verb would be forwarded.
func (e *Emitter) Accepts(verb string) bool {
	if !e.Enabled() {
		return false
	}
	if len(e.verbs) == 0 {
		return true
	}
	_, ok := e.verbs[strings.TrimSpace(verb)]
	return ok
}

// Emit forwards the event to all hooks, applying the default channel and
// metadata when missing.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Accepts(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" && e.channel != "" {
		event.Channel = e.channel
	}
	if len(e.metadata) > 0 {
		merged := cloneMap(event.Metadata)
		if merged == nil {
			merged = make(map[string]any, len(e.metadata))
		}
		for key, value := range e.metadata {
			if _, exists := merged[key]; !exists {
				merged[key] = value
			}
		}
		event.Metadata = merged
	}
	return e.hooks.Notify(ctx, event)
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	return Hooks(normalized)
}
