package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/state"
)

func newFileSet(t *testing.T) (*opts.Set, string) {
	t.Helper()
	dir := t.TempDir()
	provider := state.NewFileProvider(state.WithHomeDir(dir))
	set, err := opts.NewSet("server", []opts.Descriptor{
		opts.Field[int]("port", opts.Default("8080")),
		opts.Field[string]("host", opts.Default("localhost")),
	}, opts.WithProvider(provider))
	require.NoError(t, err)
	file, err := provider.File()
	require.NoError(t, err)
	return set, file
}

func TestNewForProvider(t *testing.T) {
	set, file := newFileSet(t)
	w, err := NewForProvider(set)
	require.NoError(t, err)
	assert.Equal(t, file, w.File())

	memory, err := opts.NewSet("mem", nil, opts.WithProvider(state.NewMemoryProvider()))
	require.NoError(t, err)
	_, err = NewForProvider(memory)
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	set, file := newFileSet(t)
	w, err := New(set, file)
	require.NoError(t, err)

	w.Subscribe("a", func(context.Context, *opts.Set, bool, error) {})
	w.Subscribe("b", func(context.Context, *opts.Set, bool, error) {})
	w.Subscribe("nil", nil)
	assert.Equal(t, 2, w.HandlerCount())

	w.Unsubscribe("a")
	w.Unsubscribe("missing")
	assert.Equal(t, 1, w.HandlerCount())
}

func TestReloadNotifiesHandlers(t *testing.T) {
	set, file := newFileSet(t)
	require.NoError(t, os.WriteFile(file, []byte("port=9090\n"), 0o644))

	w, err := New(set, file)
	require.NoError(t, err)

	var calls []bool
	w.Subscribe("record", func(_ context.Context, s *opts.Set, found bool, err error) {
		assert.NoError(t, err)
		assert.Same(t, set, s)
		calls = append(calls, found)
	})

	found, err := w.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []bool{true}, calls)
	assert.EqualValues(t, 1, w.Reloads())

	port, err := set.Value("port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)
}

func TestReloadCountsFailures(t *testing.T) {
	set, file := newFileSet(t)
	require.NoError(t, os.WriteFile(file, []byte("port=nope\n"), 0o644))

	w, err := New(set, file)
	require.NoError(t, err)

	_, err = w.Reload(context.Background())
	assert.ErrorIs(t, err, opts.ErrConversion)
	assert.EqualValues(t, 1, w.Failures())

	suppressing, err := New(set, file, WithSuppressConversionErrors(true))
	require.NoError(t, err)
	_, err = suppressing.Reload(context.Background())
	assert.NoError(t, err)
}

func TestStartReloadsOnWrite(t *testing.T) {
	set, file := newFileSet(t)
	w, err := New(set, file)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		found []bool
	)
	w.Subscribe("record", func(_ context.Context, _ *opts.Set, ok bool, _ error) {
		mu.Lock()
		defer mu.Unlock()
		found = append(found, ok)
	})

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.Running())
	defer func() {
		require.NoError(t, w.Close())
		assert.False(t, w.Running())
	}()

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(file), "other.properties"), []byte("x=1\n"), 0o644))
	require.NoError(t, os.WriteFile(file, []byte("host=example.com\n"), 0o644))

	assert.Eventually(t, func() bool {
		host, err := set.Value("host")
		return err == nil && host == "example.com"
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, found)
}

func TestCloseWithoutStart(t *testing.T) {
	set, file := newFileSet(t)
	w, err := New(set, file)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}
