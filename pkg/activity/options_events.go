package activity

import (
	"strings"
	"time"
)

const (
	VerbOptionsLoaded = "options.loaded"
	VerbOptionsSaved  = "options.saved"
	VerbOptionsReset  = "options.reset"
	VerbOptionUpdated = "option.updated"
)

// OptionsEventInput describes the common fields for options lifecycle events.
type OptionsEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Set            string
	Key            string
	Provider       string
	OldValue       any
	NewValue       any
	OccurredAt     time.Time
}

// BuildOptionsLoadedEvent constructs an event for a completed set load.
func BuildOptionsLoadedEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbOptionsLoaded, "options", input)
}

// BuildOptionsSavedEvent constructs an event for a completed set save.
func BuildOptionsSavedEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbOptionsSaved, "options", input)
}

// BuildOptionsResetEvent constructs an event for a set reset to defaults.
func BuildOptionsResetEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbOptionsReset, "options", input)
}

// BuildOptionUpdatedEvent constructs an event for a single option write. The
// object ID defaults to "<set>/<key>".
func BuildOptionUpdatedEvent(input OptionsEventInput) Event {
	if strings.TrimSpace(input.ObjectID) == "" && input.Key != "" {
		input.ObjectID = joinObjectID(input.Set, input.Key)
	}
	return buildOptionsEvent(VerbOptionUpdated, "option", input)
}

func buildOptionsEvent(verb, objectType string, input OptionsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Set != "" {
		metadata = ensureMetadata(metadata)
		metadata["set"] = input.Set
	}
	if input.Key != "" {
		metadata = ensureMetadata(metadata)
		metadata["key"] = input.Key
	}
	if input.Provider != "" {
		metadata = ensureMetadata(metadata)
		metadata["provider"] = input.Provider
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Set)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func joinObjectID(set, key string) string {
	set = strings.TrimSpace(set)
	if set == "" {
		return key
	}
	return set + "/" + key
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
