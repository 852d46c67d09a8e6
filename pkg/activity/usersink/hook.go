// Package usersink forwards option activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-optset/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Redacted replaces option values of keys listed in Hook.Redact.
const Redacted = "[redacted]"

// Hook adapts option events to a go-users ActivitySink. Keys listed in Redact
// have their old and new values masked before the record leaves the process.
type Hook struct {
	Sink   usertypes.ActivitySink
	Redact []string
	Now    func() time.Time
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       cloneMap(normalized.Metadata),
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = h.now()
	}
	if normalized.DefinitionCode != "" {
		record.Data = ensure(record.Data)
		record.Data["definition_code"] = normalized.DefinitionCode
	}
	if len(normalized.Recipients) > 0 {
		record.Data = ensure(record.Data)
		record.Data["recipients"] = append([]string{}, normalized.Recipients...)
	}
	if h.redacts(record.Data) {
		for _, field := range []string{"old_value", "new_value"} {
			if _, ok := record.Data[field]; ok {
				record.Data[field] = Redacted
			}
		}
	}

	return h.Sink.Log(ctx, record)
}

func (h Hook) redacts(data map[string]any) bool {
	key, _ := data["key"].(string)
	if key == "" {
		return false
	}
	for _, candidate := range h.Redact {
		if strings.TrimSpace(candidate) == key {
			return true
		}
	}
	return false
}

func (h Hook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func parseUUID(input string) uuid.UUID {
	value := strings.TrimSpace(input)
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func ensure(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
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
