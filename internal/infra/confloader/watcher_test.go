package confloader

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/idbridge/internal/telemetry/logger"
)

func startWatcher(t *testing.T, path string) (*Watcher, *atomic.Int32) {
	t.Helper()
	w, err := NewWatcher(path, WithWatcherLogger(logger.Discard()), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	var calls atomic.Int32
	w.OnChange(func(p string) {
		if p != filepath.Clean(path) {
			t.Errorf("callback path = %q, want %q", p, path)
		}
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, &calls
}

func eventually(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestWatcher_FileChange(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	_, calls := startWatcher(t, path)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !eventually(t, func() bool { return calls.Load() >= 1 }) {
		t.Fatal("callback not called after write")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	_, calls := startWatcher(t, path)
	time.Sleep(50 * time.Millisecond)

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	if err := os.WriteFile(other, []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("callback calls = %d, want 0", n)
	}
}

func TestNewWatcher_MissingDir(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/dir/idbridge.yaml"); err == nil {
		t.Error("NewWatcher() on a missing directory succeeded")
	}
}
