// Package notify surfaces transient messages to the user.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Iron-Ham/playground/internal/tui/styles"
	"github.com/Iron-Ham/playground/internal/util"
)

// DefaultWidth is the widest message a Snackbar prints.
const DefaultWidth = 120

// Snackbar writes each message as a single styled line and keeps the most
// recent one so a dashboard can redraw it. It is safe for concurrent use.
type Snackbar struct {
	mu       sync.Mutex
	w        io.Writer
	width    int
	plain    bool
	last     string
	lastTime time.Time
}

// NewSnackbar creates a Snackbar writing to w. A nil writer only records.
// Plain output skips styling, for non-terminal writers.
func NewSnackbar(w io.Writer, plain bool) *Snackbar {
	return &Snackbar{w: w, width: DefaultWidth, plain: plain}
}

// Show implements the orchestrator's Notifier.
func (s *Snackbar) Show(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = message
	s.lastTime = time.Now()
	if s.w == nil {
		return
	}

	line := util.TruncateString(message, s.width)
	if !s.plain {
		line = styles.Snackbar.Render(styles.WarningMsg.Render("!") + " " + line)
	}
	_, _ = fmt.Fprintln(s.w, line)
}

// Last returns the most recent message and when it was shown.
func (s *Snackbar) Last() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastTime
}

// Recorder keeps every message. It is used by tests and by the CLI to
// report failures after the loop settles.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Show implements the orchestrator's Notifier.
func (r *Recorder) Show(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Multi fans a message out to several notifiers.
type Multi []interface{ Show(string) }

// Show implements the orchestrator's Notifier.
func (m Multi) Show(message string) {
	for _, n := range m {
		n.Show(message)
	}
}
