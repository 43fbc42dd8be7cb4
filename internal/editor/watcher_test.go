package editor

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_NewAndStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte("<html>"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, func(string) {}, 0, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}

	w.Start()
	time.Sleep(10 * time.Millisecond)

	// Calling Stop() multiple times should not panic
	w.Stop()
	w.Stop()
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	w, err := NewWatcher(path, func(string) {}, 0, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	w.Stop()
}

func TestWatcher_NonExistentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "page.html")
	if _, err := NewWatcher(path, func(string) {}, 0, nil); err == nil {
		t.Fatal("Expected error when the parent directory does not exist")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte("<html amp>"), 0644); err != nil {
		t.Fatal(err)
	}

	buf := NewBuffer("<html amp>")
	changes := make(chan string, 8)
	buf.OnChange(func() { changes <- buf.Source() })

	w, err := NewWatcher(path, buf.SetSource, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("<html amp4email>"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got != "<html amp4email>" {
			t.Errorf("buffer source = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the buffer to reload")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	var applied atomic.Int32
	w, err := NewWatcher(path, func(string) { applied.Add(1) }, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.html"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	if waitFor(t, 200*time.Millisecond, func() bool { return applied.Load() > 0 }) {
		t.Error("writes to other files should not reload")
	}
}
