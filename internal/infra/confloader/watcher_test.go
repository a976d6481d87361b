package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/darabos/katana/internal/telemetry/logger"
)

func newWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(WithWatcherLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestWatcher_WatchUnwatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "..", "manifest.json")
	w := newWatcher(t)

	if err := w.Watch(a); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if !w.Watching(filepath.Join(dir, "manifest.json")) {
		t.Error("Watching() should match the cleaned path")
	}
	w.Unwatch(a)
	if w.Watching(a) {
		t.Error("Watching() after Unwatch should be false")
	}

	if err := w.Watch("/nonexistent/dir/manifest.json"); err == nil {
		t.Error("Watch() should fail for a missing directory")
	}
}

func TestWatcher_ReportsOnlyWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "manifest.json")
	other := filepath.Join(dir, "topology")
	if err := os.WriteFile(watched, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w := newWatcher(t)
	if err := w.Watch(watched); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	changed := make(chan string, 10)
	w.OnChange(func(path string) {
		select {
		case changed <- path:
		default:
		}
	})
	w.StartAsync()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	// Replace the watched file the way the file store does.
	tmp := watched + ".tmp"
	if err := os.WriteFile(tmp, []byte(`{"v":2}`), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Rename(tmp, watched); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	select {
	case path := <-changed:
		if path != watched {
			t.Errorf("OnChange() path = %q, want %q", path, watched)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange() callback was not triggered within timeout")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := NewWatcher(WithWatcherLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.StartAsync()
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
