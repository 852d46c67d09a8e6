package state_test

import (
	"context"
	"errors"
	"testing"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/state"
)

func TestLayeredStoreOrdersAndDeduplicates(t *testing.T) {
	global := state.NewMemoryStore()
	tenant := state.NewMemoryStore()
	store, err := state.NewLayeredStore(
		state.Layer{Name: "global", Priority: 0, Store: global},
		state.Layer{Name: "tenant", Priority: 10, Store: tenant},
		state.Layer{Name: "global", Priority: 20, Store: tenant},
	)
	if err != nil {
		t.Fatalf("NewLayeredStore returned error: %v", err)
	}
	layers := store.Layers()
	if len(layers) != 2 || layers[0].Name != "tenant" || layers[1].Name != "global" {
		t.Fatalf("unexpected layer order %+v", layers)
	}
	if store.Strongest().Name != "tenant" {
		t.Fatalf("expected tenant to receive saves")
	}

	if _, err := state.NewLayeredStore(); !errors.Is(err, state.ErrNoLayers) {
		t.Fatalf("expected ErrNoLayers, got %v", err)
	}
	if _, err := state.NewLayeredStore(state.Layer{Name: "x"}); err == nil {
		t.Fatalf("expected layer without store rejected")
	}
}

func TestLayeredProviderMergesStrongestFirst(t *testing.T) {
	ctx := context.Background()
	shared := state.NewMemoryStore()
	ref := state.Ref{Set: "server"}
	if _, err := shared.Save(ctx, ref, state.Record{
		Values: map[string]string{"host": "shared.local", "port": "7000"},
		Order:  []string{"host", "port"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := shared.Save(ctx, state.Ref{Namespace: "tenant/acme", Set: "server"}, state.Record{
		Values: map[string]string{"port": "9000"},
		Order:  []string{"port"},
	}); err != nil {
		t.Fatal(err)
	}

	provider, err := state.NewLayeredProvider([]state.Layer{
		{Name: "defaults", Priority: 1, Store: shared},
		{Name: "acme", Priority: 2, Namespace: "tenant/acme", Store: shared},
	}, state.WithOptimisticLocking())
	if err != nil {
		t.Fatalf("NewLayeredProvider returned error: %v", err)
	}
	if provider.Name() != "layered" {
		t.Fatalf("unexpected provider name %q", provider.Name())
	}
	set := newSet(t, provider)
	found, err := set.Load(ctx, false)
	if err != nil || !found {
		t.Fatalf("expected merged record, got found=%v err=%v", found, err)
	}
	host, _, _ := set.StringValue("host")
	port, _ := set.Value("port")
	if host != "shared.local" || port != 9000 {
		t.Fatalf("expected host from defaults and port from acme, got %q %v", host, port)
	}
	if got := provider.Meta().Extra["layers"]; got != "acme,defaults" {
		t.Fatalf("expected contributing layers, got %q", got)
	}

	if err := set.SetValue("debug", true); err != nil {
		t.Fatal(err)
	}
	if err := set.Save(ctx, true); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	written, ok := shared.Snapshot(state.Ref{Namespace: "tenant/acme", Set: "server"})
	if !ok {
		t.Fatalf("expected acme record")
	}
	if written.Values["debug"] != "true" || written.Values["port"] != "9000" {
		t.Fatalf("unexpected acme record %+v", written.Values)
	}
	if _, leaked := written.Meta.Extra["layers"]; leaked {
		t.Fatalf("expected merge metadata kept out of the stored record")
	}
	base, _ := shared.Snapshot(ref)
	if base.Values["port"] != "7000" || base.Values["debug"] != "" {
		t.Fatalf("expected defaults layer untouched, got %+v", base.Values)
	}
}

func TestLayeredStoreMissingEverywhere(t *testing.T) {
	store, err := state.NewLayeredStore(state.Layer{Store: state.NewMemoryStore()})
	if err != nil {
		t.Fatal(err)
	}
	set, err := opts.NewSet("server", descriptors(), opts.WithProvider(state.NewStoreProvider(store)))
	if err != nil {
		t.Fatal(err)
	}
	_ = set.SetValue("port", 1)
	found, err := set.Load(context.Background(), false)
	if err != nil || found {
		t.Fatalf("expected missing record, got found=%v err=%v", found, err)
	}
	if value, _ := set.Value("port"); value != 1 {
		t.Fatalf("expected options untouched, got %v", value)
	}
}
