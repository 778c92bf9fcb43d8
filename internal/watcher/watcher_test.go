package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/pathmeta"
	"github.com/goliatone/go-content/internal/pipeline"
	"github.com/goliatone/go-content/pkg/interfaces"
)

type call struct {
	action string
	path   string
}

type recordingProcessor struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingProcessor) ProcessFile(_ context.Context, abs string) ([]index.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{action: "process", path: abs})
	return nil, nil
}

func (r *recordingProcessor) RemoveFile(_ context.Context, abs string) ([]index.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{action: "remove", path: abs})
	return nil, nil
}

func (r *recordingProcessor) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recordingProcessor) count(action, path string) int {
	n := 0
	for _, c := range r.snapshot() {
		if c.action == action && c.path == path {
			n++
		}
	}
	return n
}

type changeRecorder struct {
	mu     sync.Mutex
	events []interfaces.ChangeEvent
}

func (c *changeRecorder) Publish(_ context.Context, event interfaces.ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *changeRecorder) titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, event := range c.events {
		out = append(out, event.Document.Title())
	}
	return out
}

func startWatcher(t *testing.T, proc Processor, opts Options) {
	t.Helper()
	w, err := New(proc, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		op     fsnotify.Op
		want   action
		wantOK bool
	}{
		{name: "create", op: fsnotify.Create, want: actionProcess, wantOK: true},
		{name: "write", op: fsnotify.Write, want: actionProcess, wantOK: true},
		{name: "write with chmod", op: fsnotify.Write | fsnotify.Chmod, want: actionProcess, wantOK: true},
		{name: "remove", op: fsnotify.Remove, want: actionRemove, wantOK: true},
		{name: "rename", op: fsnotify.Rename, want: actionRemove, wantOK: true},
		{name: "chmod only", op: fsnotify.Chmod, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(fsnotify.Event{Name: "/tmp/x.md", Op: tt.op})
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNewRequiresRoots(t *testing.T) {
	_, err := New(&recordingProcessor{}, Options{})
	require.ErrorIs(t, err, ErrNoRoots)
}

func TestWatchesNestedDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "guide", "deep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))

	w, err := New(&recordingProcessor{}, Options{
		Roots: []string{root},
		Skip:  func(abs string) bool { return filepath.Base(abs)[0] == '.' },
	})
	require.NoError(t, err)
	defer w.Close()

	watched := w.WatchList()
	assert.Contains(t, watched, root)
	assert.Contains(t, watched, filepath.Join(root, "guide"))
	assert.Contains(t, watched, filepath.Join(root, "guide", "deep"))
	assert.NotContains(t, watched, filepath.Join(root, ".cache"))
}

func TestDebounceCoalescesWrites(t *testing.T) {
	root := t.TempDir()
	proc := &recordingProcessor{}
	startWatcher(t, proc, Options{Roots: []string{root}, Debounce: 50 * time.Millisecond})

	path := filepath.Join(root, "index.md")
	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
	}

	require.Eventually(t, func() bool { return proc.count("process", path) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, proc.count("process", path))
}

func TestRemoveSchedulesRemoval(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.md")
	require.NoError(t, os.WriteFile(path, []byte("# Gone"), 0o644))

	proc := &recordingProcessor{}
	startWatcher(t, proc, Options{Roots: []string{root}, Debounce: 20 * time.Millisecond})

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return proc.count("remove", path) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	proc := &recordingProcessor{}
	startWatcher(t, proc, Options{Roots: []string{root}, Debounce: 20 * time.Millisecond})

	dir := filepath.Join(root, "blog")
	require.NoError(t, os.Mkdir(dir, 0o755))
	// give the watcher a chance to register the directory first
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "post.md")
	require.NoError(t, os.WriteFile(path, []byte("# Post"), 0o644))
	require.Eventually(t, func() bool { return proc.count("process", path) >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveUpdateOrdering(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "index.md")
	require.NoError(t, os.WriteFile(path, []byte("# Hello\n"), 0o644))

	recorder := &changeRecorder{}
	ix := index.New(index.WithPublisher(recorder))
	p, err := pipeline.New(pipeline.Options{
		Sources: []pathmeta.Source{{Name: "content", Root: root}},
		Index:   ix,
	})
	require.NoError(t, err)
	_, err = p.Build(context.Background())
	require.NoError(t, err)

	startWatcher(t, p, Options{Roots: []string{root}})
	require.NoError(t, os.WriteFile(path, []byte("# Hello HMR\n"), 0o644))

	require.Eventually(t, func() bool {
		doc, ok := ix.Snapshot().Get("content:index.md")
		return ok && doc.Title() == "Hello HMR"
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(recorder.titles()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Hello", "Hello HMR"}, recorder.titles())
}
