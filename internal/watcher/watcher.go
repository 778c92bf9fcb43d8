// Package watcher keeps the index in sync with the source trees by feeding
// debounced filesystem events into the pipeline.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// DefaultDebounce is the quiet period applied per path before a flush.
const DefaultDebounce = 100 * time.Millisecond

// ErrNoRoots is returned when the watcher is created without directories.
var ErrNoRoots = errors.New("watcher: at least one root is required")

// Processor applies file changes. It is satisfied by *pipeline.Pipeline and
// by the content command handler set.
type Processor interface {
	ProcessFile(ctx context.Context, abs string) ([]index.Change, error)
	RemoveFile(ctx context.Context, abs string) ([]index.Change, error)
}

// Options configures a Watcher. Skip reports directories that should not be
// watched.
type Options struct {
	Roots    []string
	Debounce time.Duration
	Skip     func(abs string) bool
	Logger   interfaces.Logger
}

type action int

const (
	actionProcess action = iota + 1
	actionRemove
)

func (a action) String() string {
	if a == actionRemove {
		return "remove"
	}
	return "process"
}

type pending struct {
	action action
	gen    uint64
	timer  *time.Timer
}

type flush struct {
	path string
	gen  uint64
}

// Watcher watches every directory under its roots, adding directories as
// they appear. Flushes run sequentially on the Run goroutine so the latest
// content of a path always wins.
type Watcher struct {
	proc     Processor
	fs       *fsnotify.Watcher
	debounce time.Duration
	skip     func(string) bool
	logger   interfaces.Logger

	pending map[string]*pending
	gen     uint64
	ready   chan flush

	closeOnce sync.Once
	closeErr  error
}

// New creates the fsnotify watcher and registers every directory under
// opts.Roots. Events are only consumed once Run is called.
func New(proc Processor, opts Options) (*Watcher, error) {
	if len(opts.Roots) == 0 {
		return nil, ErrNoRoots
	}
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create: %w", err)
	}

	w := &Watcher{
		proc:     proc,
		fs:       notifier,
		debounce: opts.Debounce,
		skip:     opts.Skip,
		logger:   logging.Ensure(opts.Logger),
		pending:  map[string]*pending{},
		ready:    make(chan flush),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("watcher: resolve %s: %w", root, err)
		}
		if err := w.addTree(abs, nil); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fs.Close()
	})
	return w.closeErr
}

// WatchList returns the watched directories.
func (w *Watcher) WatchList() []string {
	return w.fs.WatchList()
}

// Run consumes events until ctx is cancelled. It returns nil on
// cancellation and closes the watcher on exit.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	defer w.stopTimers()

	w.logger.Info("watcher.started", "directories", len(w.fs.WatchList()), "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher.stopped")
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher.error", "error", err)
		case f := <-w.ready:
			w.flush(ctx, f)
		}
	}
}

// classify maps an fsnotify event to the action it schedules. Chmod-only
// events are ignored.
func classify(event fsnotify.Event) (action, bool) {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return actionRemove, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return actionProcess, true
	}
	return 0, false
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	act, ok := classify(event)
	if !ok {
		return
	}
	path := filepath.Clean(event.Name)

	if act == actionProcess && event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// files written before the watch was added only show up in the walk
			var files []string
			if err := w.addTree(path, &files); err != nil {
				w.logger.Error("watcher.error", "path", path, "error", err)
			}
			for _, file := range files {
				w.schedule(ctx, file, actionProcess)
			}
			return
		}
	}
	w.schedule(ctx, path, act)
}

// schedule resets the debounce timer of path. The last scheduled action wins.
func (w *Watcher) schedule(ctx context.Context, path string, act action) {
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	w.gen++
	f := flush{path: path, gen: w.gen}
	w.pending[path] = &pending{
		action: act,
		gen:    f.gen,
		timer: time.AfterFunc(w.debounce, func() {
			select {
			case w.ready <- f:
			case <-ctx.Done():
			}
		}),
	}
}

func (w *Watcher) flush(ctx context.Context, f flush) {
	p, ok := w.pending[f.path]
	if !ok || p.gen != f.gen {
		return
	}
	delete(w.pending, f.path)

	var (
		changes []index.Change
		err     error
	)
	switch p.action {
	case actionRemove:
		changes, err = w.proc.RemoveFile(ctx, f.path)
	default:
		changes, err = w.proc.ProcessFile(ctx, f.path)
	}
	if err != nil {
		w.logger.Error("watcher.error", "path", f.path, "action", p.action.String(), "error", err)
		return
	}
	if len(changes) > 0 {
		w.logger.Debug("watcher.flushed", "path", f.path, "action", p.action.String(), "changes", len(changes))
	}
}

func (w *Watcher) stopTimers() {
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// addTree watches root and every directory beneath it. When files is not
// nil the regular files found along the way are appended to it.
func (w *Watcher) addTree(root string, files *[]string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if files != nil {
				*files = append(*files, path)
			}
			return nil
		}
		if path != root && w.skip != nil && w.skip(path) {
			return fs.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watcher: watch %s: %w", path, err)
		}
		return nil
	})
}
