// Package watch reacts to filesystem events by handing settled files to the
// organizer.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrelhq/kestrel/internal/executor"
)

// DefaultDebounce is how long a path must stay quiet before it is handed to
// the handler. Downloads and copies emit bursts of writes; acting on a file
// mid-write would organize a partial file.
const DefaultDebounce = 2 * time.Second

// Handler receives a path once its event burst has settled. Handlers run on
// a single worker goroutine, so invocations never overlap.
type Handler func(ctx context.Context, path string) error

// Watcher observes a single directory and debounces events per path.
type Watcher struct {
	log      *slog.Logger
	handler  Handler
	timers   map[string]*time.Timer
	settled  chan string
	root     string
	debounce time.Duration
	mu       sync.Mutex
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the quiet period before a path is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// NewWatcher creates a watcher for root. Events are delivered to handler
// one at a time after each path settles.
func NewWatcher(root string, handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	w := &Watcher{
		log:      slog.Default(),
		handler:  handler,
		timers:   make(map[string]*time.Timer),
		settled:  make(chan string, 64),
		root:     root,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. It returns the context error on
// cancellation and any watcher setup or event stream failure otherwise.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer func() {
		if closeErr := fsw.Close(); closeErr != nil {
			w.log.Warn("failed to close filesystem watcher", "error", closeErr)
		}
	}()

	if err := fsw.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.log.Info("watching directory", "root", w.root, "debounce", w.debounce)

	workerCtx, stopWorker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(workerCtx)
	}()
	defer func() {
		w.stopTimers()
		stopWorker()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("filesystem event stream closed")
			}
			w.observe(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("filesystem error stream closed")
			}
			w.log.Warn("filesystem watcher error", "error", err)
		}
	}
}

// observe resets the settle timer for the event's path. Each reset pushes
// the handoff back, so a file being written in bursts is handled once, after
// the last write.
func (w *Watcher) observe(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || name == executor.FallbackTrashName {
		return
	}

	path := event.Name
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.settled <- path
	})
}

// work drains settled paths one at a time.
func (w *Watcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.settled:
			if err := w.handler(ctx, path); err != nil {
				w.log.Warn("failed to handle file", "path", path, "error", err)
			}
		}
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}
