// Package preview renders the playground source for viewing. The File
// preview writes the document to disk where a browser or an embedding host
// picks it up.
package preview

import (
	"sync"

	"github.com/Iron-Ham/playground/internal/fsutil"
	"github.com/Iron-Ham/playground/internal/logging"
)

// File writes each refreshed source to a file. Refreshing with the content
// already written is a no-op. While hidden, refreshes are remembered and
// written when the preview becomes visible again.
type File struct {
	mu      sync.Mutex
	path    string
	visible bool
	pending string
	written string
	hasData bool
	writes  int
	logger  *logging.Logger
}

// NewFile creates a visible preview writing to path.
func NewFile(path string, logger *logging.Logger) *File {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &File{
		path:    path,
		visible: true,
		logger:  logger.WithComponent("preview").With("path", path),
	}
}

// Refresh implements the orchestrator's Preview.
func (f *File) Refresh(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = source
	f.hasData = true
	if f.visible {
		f.flush()
	}
}

// SetVisible shows or hides the preview.
func (f *File) SetVisible(visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.visible = visible
	if visible && f.hasData {
		f.flush()
	}
}

// Visible reports whether the preview is shown.
func (f *File) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// Writes returns how many times the file was written.
func (f *File) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Path returns the preview file path.
func (f *File) Path() string {
	return f.path
}

// flush must be called with f.mu held.
func (f *File) flush() {
	if f.writes > 0 && f.pending == f.written {
		return
	}
	if err := fsutil.WriteFileAtomic(f.path, []byte(f.pending), 0644); err != nil {
		f.logger.Warn("failed to write preview", "error", err.Error())
		return
	}
	f.written = f.pending
	f.writes++
	f.logger.Debug("preview written", "bytes", len(f.pending))
}
