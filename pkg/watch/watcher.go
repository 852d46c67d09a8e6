// Package watch reloads an options set when its backing file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/state"
)

// ErrNoFile is returned by NewForProvider when the set is not file backed.
var ErrNoFile = errors.New("watch: set provider has no backing file")

// ChangeHandler is invoked after every reload attempt with the result of
// opts.Set.Load.
type ChangeHandler func(ctx context.Context, set *opts.Set, found bool, err error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSuppressConversionErrors makes reloads drop keys that fail to convert
// instead of rejecting the whole file.
func WithSuppressConversionErrors(suppress bool) Option {
	return func(w *Watcher) {
		w.suppress = suppress
	}
}

// Watcher reloads a set whenever its file is written or created. The parent
// directory is watched so atomic replacements are observed. Concurrent reload
// requests share one Load call.
type Watcher struct {
	set      *opts.Set
	file     string
	logger   *zap.Logger
	suppress bool

	mu       sync.RWMutex
	handlers map[string]ChangeHandler

	group    singleflight.Group
	running  atomic.Bool
	reloads  atomic.Int64
	failures atomic.Int64

	life   sync.Mutex
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// New watches file on behalf of set.
func New(set *opts.Set, file string, options ...Option) (*Watcher, error) {
	if set == nil {
		return nil, fmt.Errorf("watch: nil set")
	}
	if file == "" {
		return nil, ErrNoFile
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", file, err)
	}
	w := &Watcher{
		set:      set,
		file:     filepath.Clean(abs),
		logger:   zap.NewNop(),
		handlers: make(map[string]ChangeHandler),
	}
	for _, opt := range options {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = w.logger.With(zap.String("set", set.Name()), zap.String("file", w.file))
	return w, nil
}

// NewForProvider watches the file of the set's *state.FileProvider.
func NewForProvider(set *opts.Set, options ...Option) (*Watcher, error) {
	if set == nil {
		return nil, fmt.Errorf("watch: nil set")
	}
	provider, ok := set.Provider().(*state.FileProvider)
	if !ok {
		return nil, ErrNoFile
	}
	file, err := provider.File()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	return New(set, file, options...)
}

// File returns the absolute path being watched.
func (w *Watcher) File() string { return w.file }

// Subscribe registers handler under id, replacing any previous handler.
func (w *Watcher) Subscribe(id string, handler ChangeHandler) {
	if handler == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = handler
	w.logger.Debug("watch: subscribed", zap.String("handler", id))
}

// Unsubscribe removes the handler registered under id.
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handlers[id]; ok {
		delete(w.handlers, id)
		w.logger.Debug("watch: unsubscribed", zap.String("handler", id))
	}
}

// HandlerCount returns the number of registered handlers.
func (w *Watcher) HandlerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.handlers)
}

// Running reports whether Start has been called without a matching Close.
func (w *Watcher) Running() bool { return w.running.Load() }

// Reloads returns the number of completed reloads.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

// Failures returns the number of reloads that returned an error.
func (w *Watcher) Failures() int64 { return w.failures.Load() }

// Start begins watching. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.life.Lock()
	defer w.life.Unlock()
	if !w.running.CompareAndSwap(false, true) {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.running.Store(false)
		return fmt.Errorf("watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.file)); err != nil {
		_ = fsw.Close()
		w.running.Store(false)
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(w.file), err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, fsw, w.done)
	w.logger.Info("watch: started")
	return nil
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.life.Lock()
	defer w.life.Unlock()
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	w.cancel()
	err := w.fsw.Close()
	<-w.done
	w.logger.Info("watch: stopped")
	return err
}

// Reload loads the set from its provider and notifies handlers. Calls made
// while a reload is in flight wait for and share its result.
func (w *Watcher) Reload(ctx context.Context) (bool, error) {
	result, err, shared := w.group.Do("reload", func() (any, error) {
		found, err := w.set.Load(ctx, w.suppress)
		w.reloads.Inc()
		if err != nil {
			w.failures.Inc()
			w.logger.Warn("watch: reload failed", zap.Error(err))
		} else {
			w.logger.Info("watch: reloaded", zap.Bool("found", found))
		}
		w.notify(ctx, found, err)
		return found, err
	})
	if shared {
		w.logger.Debug("watch: reload coalesced")
	}
	found, _ := result.(bool)
	return found, err
}

func (w *Watcher) notify(ctx context.Context, found bool, err error) {
	w.mu.RLock()
	handlers := make(map[string]ChangeHandler, len(w.handlers))
	for id, handler := range w.handlers {
		handlers[id] = handler
	}
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, w.set, found, err)
	}
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("watch: change detected", zap.String("op", event.Op.String()))
			_, _ = w.Reload(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch: fsnotify error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.file {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
