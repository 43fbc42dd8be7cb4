package preview

import (
	"os"
	"path/filepath"
	"testing"
)

func readPreview(t *testing.T, f *File) string {
	t.Helper()
	data, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatalf("failed to read preview: %v", err)
	}
	return string(data)
}

func TestFile_RefreshIsIdempotent(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "preview.html"), nil)

	f.Refresh("<p>one</p>")
	f.Refresh("<p>one</p>")
	if f.Writes() != 1 {
		t.Errorf("Writes() = %d after identical refreshes, want 1", f.Writes())
	}

	f.Refresh("<p>two</p>")
	if f.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", f.Writes())
	}
	if got := readPreview(t, f); got != "<p>two</p>" {
		t.Errorf("preview = %q", got)
	}
}

func TestFile_EmptySourceIsWritten(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "preview.html"), nil)
	f.Refresh("")
	if f.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", f.Writes())
	}
	if got := readPreview(t, f); got != "" {
		t.Errorf("preview = %q, want empty", got)
	}
}

func TestFile_HiddenDefersWrites(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "out", "preview.html"), nil)
	f.SetVisible(false)
	if f.Visible() {
		t.Fatal("preview should be hidden")
	}

	f.Refresh("<p>a</p>")
	f.Refresh("<p>b</p>")
	if f.Writes() != 0 {
		t.Errorf("hidden preview wrote %d times", f.Writes())
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Errorf("preview file should not exist yet, stat err = %v", err)
	}

	f.SetVisible(true)
	if f.Writes() != 1 {
		t.Errorf("Writes() = %d after showing, want 1", f.Writes())
	}
	if got := readPreview(t, f); got != "<p>b</p>" {
		t.Errorf("preview = %q, want latest source", got)
	}

	// Showing again with nothing new does not rewrite.
	f.SetVisible(true)
	if f.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", f.Writes())
	}
}

func TestFile_ShowWithoutContent(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "preview.html"), nil)
	f.SetVisible(false)
	f.SetVisible(true)
	if f.Writes() != 0 {
		t.Errorf("Writes() = %d, want 0", f.Writes())
	}
}
