package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const debounce = 50 * time.Millisecond

func runWatcher(t *testing.T, w *Watcher) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- w.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-finished:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcherRunsTaskAfterChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	var runs atomic.Int32
	w, err := New([]string{dir}, debounce, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)
	stop := runWatcher(t, w)
	defer stop()

	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "plot.py"), []byte{byte(i)}, 0o644))
	}

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(4 * debounce)
	assert.Equal(t, int32(1), runs.Load(), "a burst of writes is debounced into one run")
}

func TestWatcherCoalescesChangesDuringRun(t *testing.T) {
	dir := t.TempDir()
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var runs atomic.Int32

	w, err := New([]string{dir}, debounce, func(context.Context) error {
		n := runs.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-release
		}
		return nil
	}, WithInitialRun())
	require.NoError(t, err)
	stop := runWatcher(t, w)
	defer stop()

	<-started
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte{byte(i)}, 0o644))
		time.Sleep(2 * debounce)
	}
	assert.Equal(t, int32(1), runs.Load(), "only one task runs at a time")
	close(release)

	<-started
	time.Sleep(4 * debounce)
	assert.Equal(t, int32(2), runs.Load())
}

func TestWatcherReportsResults(t *testing.T) {
	dir := t.TempDir()
	results := make(chan error, 1)
	w, err := New([]string{dir}, debounce, func(context.Context) error { return context.DeadlineExceeded },
		WithInitialRun(), WithResultHook(func(err error) { results <- err }))
	require.NoError(t, err)
	stop := runWatcher(t, w)
	defer stop()

	select {
	case err := <-results:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("no result reported")
	}
}

func TestNewRequiresExistingPath(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")}, debounce, func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "examples/plot.py", Op: fsnotify.Write}))
	assert.False(t, relevant(fsnotify.Event{Name: "examples/plot.py", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "eegrasp/graph.cpython-311.pyc", Op: fsnotify.Create}))
	assert.False(t, relevant(fsnotify.Event{Name: "eegrasp/.graph.py.swp", Op: fsnotify.Write}))
	assert.False(t, relevant(fsnotify.Event{Name: "eegrasp/__pycache__", Op: fsnotify.Create}))
}
