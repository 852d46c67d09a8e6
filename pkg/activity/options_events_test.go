package activity

import (
	"testing"
	"time"
)

func TestBuildOptionUpdatedEventMetadata(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	input := OptionsEventInput{
		ActorID:        " actor ",
		UserID:         " user ",
		TenantID:       " tenant ",
		Set:            "server",
		Key:            "port",
		Provider:       "file",
		Metadata:       meta,
		OldValue:       8080,
		NewValue:       9090,
		DefinitionCode: "options:update",
		Recipients:     []string{"ops@example.com"},
		Channel:        "options",
	}

	event := BuildOptionUpdatedEvent(input)

	if event.Verb != VerbOptionUpdated {
		t.Fatalf("expected verb %s got %s", VerbOptionUpdated, event.Verb)
	}
	if event.ObjectType != "option" || event.ObjectID != "server/port" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.UserID != "user" || event.TenantID != "tenant" {
		t.Fatalf("expected trimmed identity fields: %+v", event)
	}
	want := map[string]any{
		"custom":    "value",
		"set":       "server",
		"key":       "port",
		"provider":  "file",
		"old_value": 8080,
		"new_value": 9090,
	}
	for key, value := range want {
		if event.Metadata[key] != value {
			t.Fatalf("metadata %s: expected %v got %v", key, value, event.Metadata[key])
		}
	}
	if _, leaked := meta["set"]; leaked {
		t.Fatalf("input metadata must not be mutated")
	}

	input.Recipients[0] = "changed"
	if event.Recipients[0] != "ops@example.com" {
		t.Fatalf("recipients must be copied")
	}
}

func TestBuildOptionUpdatedEventExplicitObjectID(t *testing.T) {
	event := BuildOptionUpdatedEvent(OptionsEventInput{ObjectID: "custom", Set: "server", Key: "port"})
	if event.ObjectID != "custom" {
		t.Fatalf("expected explicit object id kept, got %q", event.ObjectID)
	}

	event = BuildOptionUpdatedEvent(OptionsEventInput{Key: "port"})
	if event.ObjectID != "port" {
		t.Fatalf("expected bare key without set, got %q", event.ObjectID)
	}
}

func TestBuildSetEvents(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		build func(OptionsEventInput) Event
		verb  string
	}{
		{name: "loaded", build: BuildOptionsLoadedEvent, verb: VerbOptionsLoaded},
		{name: "saved", build: BuildOptionsSavedEvent, verb: VerbOptionsSaved},
		{name: "reset", build: BuildOptionsResetEvent, verb: VerbOptionsReset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := tc.build(OptionsEventInput{Set: "server", OccurredAt: at})
			if event.Verb != tc.verb || event.ObjectType != "options" {
				t.Fatalf("unexpected event: %+v", event)
			}
			if event.ObjectID != "server" {
				t.Fatalf("expected object id from set, got %q", event.ObjectID)
			}
			if event.Metadata["set"] != "server" {
				t.Fatalf("expected set metadata, got %v", event.Metadata)
			}
			if !event.OccurredAt.Equal(at) {
				t.Fatalf("expected occurred_at kept, got %v", event.OccurredAt)
			}
		})
	}
}

func TestBuildSetEventWithoutSet(t *testing.T) {
	event := BuildOptionsSavedEvent(OptionsEventInput{})
	if event.ObjectID != "options" {
		t.Fatalf("expected object type fallback, got %q", event.ObjectID)
	}
	if event.Metadata != nil {
		t.Fatalf("expected no metadata, got %v", event.Metadata)
	}
}
