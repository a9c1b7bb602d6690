package watch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap/zaptest"
)

const debounce = 30 * time.Millisecond

func waitCalls(t *testing.T, calls *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("job calls = %d, want %d", calls.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(time.Now().String()), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w := New([]string{dir}, debounce, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zaptest.NewLogger(t))
	start(t, w)

	// initial run
	waitCalls(t, &calls, 1)

	for i := range 10 {
		touch(t, filepath.Join(dir, "doc"+strconv.Itoa(i)+".docx"))
	}
	waitCalls(t, &calls, 2)

	time.Sleep(10 * debounce)
	if got := calls.Load(); got != 2 {
		t.Errorf("job calls = %d, want 2", got)
	}
}

func TestWatcher_FollowUpWhileRunning(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	gate := make(chan struct{})
	w := New([]string{dir}, debounce, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			select {
			case <-gate:
			case <-ctx.Done():
			}
		}
		return nil
	}, zaptest.NewLogger(t))
	start(t, w)
	waitCalls(t, &calls, 1)

	// several quiet periods pass while the first job is blocked
	for i := range 3 {
		touch(t, filepath.Join(dir, "img"+strconv.Itoa(i)+".png"))
		time.Sleep(5 * debounce)
	}
	close(gate)

	waitCalls(t, &calls, 2)
	time.Sleep(10 * debounce)
	if got := calls.Load(); got != 2 {
		t.Errorf("job calls = %d, want 2", got)
	}
}

func TestWatcher_IgnoresLockFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w := New([]string{dir}, debounce, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zaptest.NewLogger(t))
	start(t, w)
	waitCalls(t, &calls, 1)

	touch(t, filepath.Join(dir, "~$page.docx"))
	touch(t, filepath.Join(dir, ".hidden"))
	time.Sleep(10 * debounce)
	if got := calls.Load(); got != 1 {
		t.Errorf("job calls = %d, want 1", got)
	}
}

func TestWatcher_NothingToWatch(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "absent")}, debounce, func(context.Context) error { return nil }, zaptest.NewLogger(t))
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/d/page.docx", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/d/page.docx", Op: fsnotify.Chmod}, true},
		{fsnotify.Event{Name: "/d/~$page.docx", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/d/.page.html.swp", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/d/foo.png", Op: fsnotify.Remove}, false},
	}
	for _, tt := range tests {
		if got := ignored(tt.ev); got != tt.want {
			t.Errorf("ignored(%v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}
