package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/morozRed/ripple/internal/ignore"
	"github.com/morozRed/ripple/internal/logging"
)

// DefaultDebounce is the quiet period after which a path's edits are settled.
const DefaultDebounce = 500 * time.Millisecond

// EventKind says whether a settled path still exists.
type EventKind int

const (
	EventChanged EventKind = iota
	EventRemoved
)

func (k EventKind) String() string {
	if k == EventRemoved {
		return "removed"
	}
	return "changed"
}

// Event is one settled change. Path is absolute.
type Event struct {
	Path string
	Kind EventKind
}

// Handler processes settled events one at a time.
type Handler func(ctx context.Context, ev Event)

// Options configures a Watcher.
type Options struct {
	Root     string
	Debounce time.Duration
	Ignore   *ignore.Matcher
	// Filter reports whether a file path should produce events. Nil accepts
	// every non-ignored file.
	Filter func(path string) bool
	Logger *slog.Logger
}

// Watcher watches a directory tree and emits one event per path once its
// notifications have been quiet for the debounce window.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	ignore   *ignore.Matcher
	filter   func(path string) bool
	logger   *slog.Logger
	debounce *debouncer

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher and registers every non-ignored directory under root.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	window := opts.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}
	matcher := opts.Ignore
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		watcher:  fw,
		ignore:   matcher,
		filter:   opts.Filter,
		logger:   logging.OrDiscard(opts.Logger),
		debounce: newDebouncer(window),
		done:     make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers settled events to handle until ctx is cancelled. Events are
// handled sequentially, never concurrently.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.Stop()

	go w.processEvents(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case ev := <-w.debounce.ready:
			handle(ctx, ev)
		}
	}
}

// Stop releases the underlying watches.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.debounce.stop()
		_ = w.watcher.Close()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, path); relErr == nil && rel != "." && w.ignore.ShouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch error", "error", err)
				continue
			}
			w.logger.Warn("watch queue overflowed, some changes may be missed")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ignore.ShouldIgnore(rel, true) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if w.ignore.ShouldIgnore(rel, false) {
		return
	}
	if w.filter != nil && !w.filter(event.Name) {
		return
	}

	if event.Op == fsnotify.Chmod {
		return
	}
	kind := EventChanged
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		kind = EventRemoved
	}
	w.logger.Debug("file event", "path", rel, "op", event.Op.String())
	w.debounce.trigger(Event{Path: event.Name, Kind: kind})
}

// debouncer holds one trailing timer per path. Each trigger restarts the
// path's timer and the latest kind wins.
type debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	ready   chan Event
	done    chan struct{}
	stopped bool
	gen     uint64
}

type pendingEvent struct {
	timer *time.Timer
	event Event
	gen   uint64
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		ready:   make(chan Event, 64),
		done:    make(chan struct{}),
	}
}

func (d *debouncer) trigger(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.gen++
	gen := d.gen
	if p, ok := d.pending[ev.Path]; ok {
		p.timer.Stop()
	}
	d.pending[ev.Path] = &pendingEvent{
		event: ev,
		gen:   gen,
		timer: time.AfterFunc(d.window, func() { d.fire(ev.Path, gen) }),
	}
}

// fire emits path's event unless a later trigger superseded this timer.
func (d *debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || p.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	ev := p.event
	d.mu.Unlock()

	select {
	case d.ready <- ev:
	case <-d.done:
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
	close(d.done)
}
