package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCollapsesBurstsPerPath(t *testing.T) {
	d := newDebouncer(40 * time.Millisecond)
	defer d.stop()

	for i := 0; i < 5; i++ {
		d.trigger(Event{Path: "/p/a.py", Kind: EventChanged})
		time.Sleep(5 * time.Millisecond)
	}
	d.trigger(Event{Path: "/p/b.py", Kind: EventChanged})
	d.trigger(Event{Path: "/p/a.py", Kind: EventRemoved})

	got := map[string]EventKind{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-d.ready:
			_, dup := got[ev.Path]
			require.False(t, dup, "duplicate event for %s", ev.Path)
			got[ev.Path] = ev.Kind
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, EventRemoved, got["/p/a.py"], "latest kind wins")
	assert.Equal(t, EventChanged, got["/p/b.py"])

	select {
	case ev := <-d.ready:
		t.Fatalf("unexpected extra event %v", ev)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestDebouncerStopDropsPending(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	d.trigger(Event{Path: "/p/a.py"})
	d.stop()
	d.trigger(Event{Path: "/p/b.py"})

	select {
	case ev := <-d.ready:
		t.Fatalf("unexpected event after stop: %v", ev)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestWatcherDeliversSettledChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".ripple"), 0755))

	w, err := New(Options{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		Filter:   func(path string) bool { return strings.HasSuffix(path, ".py") },
	})
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		events []Event
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = w.Run(ctx, func(_ context.Context, ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		})
	}()

	target := filepath.Join(root, "pkg", "mod.py")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("x = 1\n"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "notes.txt"), []byte("skip"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".ripple", "cache.py"), []byte("skip"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, 3*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	got := append([]Event(nil), events...)
	mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, target, got[0].Path)
	assert.Equal(t, EventChanged, got[0].Kind)

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop")
	}
}
