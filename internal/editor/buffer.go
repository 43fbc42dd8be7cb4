// Package editor provides the editing surface used by the playground: an
// in-memory source buffer with change notification, and a file watcher that
// reports on-disk edits.
package editor

import (
	"sync"

	"github.com/Iron-Ham/playground/internal/validator"
)

// Buffer is an in-memory editing surface. It is safe for concurrent use.
// Change handlers run synchronously in the goroutine that changed the
// source, after the buffer lock is released.
type Buffer struct {
	mu        sync.RWMutex
	source    string
	revision  uint64
	handlers  []func()
	loading   bool
	result    validator.Result
	hasResult bool
}

// NewBuffer creates a buffer holding initial. No handler is notified for it.
func NewBuffer(initial string) *Buffer {
	return &Buffer{source: initial}
}

// Source returns the current source.
func (b *Buffer) Source() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.source
}

// SetSource replaces the source and notifies change handlers. Setting the
// content the buffer already holds is not a change.
func (b *Buffer) SetSource(source string) {
	b.mu.Lock()
	if source == b.source {
		b.mu.Unlock()
		return
	}
	b.source = source
	b.revision++
	handlers := make([]func(), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// OnChange registers a handler invoked after every change.
func (b *Buffer) OnChange(handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Revision counts changes since creation.
func (b *Buffer) Revision() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}

// ShowLoadingIndicator marks the buffer as waiting for new content.
func (b *Buffer) ShowLoadingIndicator() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = true
}

// HideLoadingIndicator clears the loading mark.
func (b *Buffer) HideLoadingIndicator() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
}

// Loading reports whether the loading indicator is shown.
func (b *Buffer) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading
}

// SetValidationResult stores the result to display alongside the source.
func (b *Buffer) SetValidationResult(result validator.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = result
	b.hasResult = true
}

// ValidationResult returns the displayed result, if any.
func (b *Buffer) ValidationResult() (validator.Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.result, b.hasResult
}
