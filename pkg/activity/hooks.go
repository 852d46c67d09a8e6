package activity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// Event is one option-store activity record. ObjectType is the kind of the
// object (a set or an option) and ObjectID its name.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Routable reports whether the event carries the fields hooks key on.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// NormalizeEvent returns a copy of event with trimmed identifiers, private
// metadata and recipients, and a timestamp.
func NormalizeEvent(event Event) Event {
	out := event
	for _, field := range []*string{
		&out.Verb, &out.ActorID, &out.UserID, &out.TenantID,
		&out.ObjectType, &out.ObjectID, &out.Channel, &out.DefinitionCode,
	} {
		*field = strings.TrimSpace(*field)
	}
	out.Metadata = cloneMap(event.Metadata)
	out.Recipients = nil
	if len(event.Recipients) > 0 {
		out.Recipients = slices.Clone(event.Recipients)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans one event out to every hook.
type Hooks []ActivityHook

func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// With returns a copy of h extended by the non-nil hooks.
func (h Hooks) With(hooks ...ActivityHook) Hooks {
	out := slices.Clone(h)
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

// Notify normalizes event and hands it to each hook in order. Events that are
// not routable are dropped. Every hook runs; failures are joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type verbFilter struct {
	hook  ActivityHook
	verbs map[string]struct{}
}

// OnlyVerbs limits hook to the listed verbs.
func OnlyVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	f := verbFilter{hook: hook, verbs: make(map[string]struct{}, len(verbs))}
	for _, verb := range verbs {
		f.verbs[strings.TrimSpace(verb)] = struct{}{}
	}
	return f
}

func (f verbFilter) Notify(ctx context.Context, event Event) error {
	if f.hook == nil {
		return nil
	}
	if _, ok := f.verbs[strings.TrimSpace(event.Verb)]; !ok {
		return nil
	}
	return f.hook.Notify(ctx, event)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
