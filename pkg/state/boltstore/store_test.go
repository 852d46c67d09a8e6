package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/state"
)

func openDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "options.db"), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreLoadMissing(t *testing.T) {
	store := New(openDB(t))
	_, ok, err := store.Load(context.Background(), state.Ref{Set: "server"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSaveLoad(t *testing.T) {
	store := New(openDB(t), WithBucket("custom"))
	ctx := context.Background()
	ref := state.Ref{Namespace: "tenant/acme", Set: "server"}

	meta, err := store.Save(ctx, ref, state.Record{
		Values: map[string]string{"host": "example.org", "port": "8080"},
		Order:  []string{"port", "host"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.SnapshotID)
	assert.Equal(t, state.ETag(map[string]string{"host": "example.org", "port": "8080"}), meta.ETag)

	record, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"host": "example.org", "port": "8080"}, record.Values)
	assert.Equal(t, []string{"port", "host"}, record.Order)
	assert.Equal(t, meta.SnapshotID, record.Meta.SnapshotID)

	_, err = store.Save(ctx, ref, state.Record{Values: map[string]string{"host": "x"}})
	require.NoError(t, err)
	record, _, err = store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"host": "x"}, record.Values, "save replaces the whole record")
}

func TestStoreETagMismatch(t *testing.T) {
	store := New(openDB(t))
	ctx := context.Background()
	ref := state.Ref{Set: "server"}

	_, err := store.Save(ctx, ref, state.Record{Values: map[string]string{"a": "1"}, Meta: state.Meta{ETag: "missing"}})
	assert.True(t, errors.Is(err, state.ErrETagMismatch), "a tag against a missing record must fail")

	first, err := store.Save(ctx, ref, state.Record{Values: map[string]string{"a": "1"}})
	require.NoError(t, err)
	_, err = store.Save(ctx, ref, state.Record{Values: map[string]string{"a": "2"}, Meta: state.Meta{ETag: "stale"}})
	assert.ErrorIs(t, err, state.ErrETagMismatch)
	_, err = store.Save(ctx, ref, state.Record{Values: map[string]string{"a": "2"}, Meta: first})
	assert.NoError(t, err)
}

func TestProviderWithSet(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	descriptors := []opts.Descriptor{
		opts.Field[string]("host", opts.Default("localhost")),
		opts.Field[int]("port", opts.Default("8080")),
	}

	set, err := opts.NewSet("server", descriptors, opts.WithProvider(NewProvider(db)))
	require.NoError(t, err)
	require.NoError(t, set.SetValue("port", 9000))
	require.NoError(t, set.Save(ctx, true))

	reloaded, err := opts.NewSet("server", descriptors, opts.WithProvider(NewProvider(db)))
	require.NoError(t, err)
	found, err := reloaded.Load(ctx, false)
	require.NoError(t, err)
	assert.True(t, found)

	port, err := reloaded.Value("port")
	require.NoError(t, err)
	assert.Equal(t, 9000, port)
	host, err := reloaded.Value("host")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, "bolt", reloaded.Provider().(*state.StoreProvider).Name())
}
