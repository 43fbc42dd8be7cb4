package playground

import (
	"context"
	"maps"
	"sync"

	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/validator"
)

// Editor is the editing surface. It owns the source text.
// OnChange handlers are invoked whenever the buffer content changes,
// from whichever goroutine changed it.
type Editor interface {
	Source() string
	SetSource(source string)
	OnChange(handler func())
	ShowLoadingIndicator()
	SetValidationResult(result validator.Result)
}

// loadingHider is implemented by editors that can clear the loading
// indicator without a source change.
type loadingHider interface {
	HideLoadingIndicator()
}

// Validator validates one source snapshot under a validation profile.
type Validator interface {
	Validate(ctx context.Context, source string, profile validator.Profile) (validator.Result, error)
}

// Preview renders the source. Refresh must be idempotent for identical input.
type Preview interface {
	Refresh(source string)
}

// visibilitySetter is implemented by previews that can be shown or hidden.
type visibilitySetter interface {
	SetVisible(visible bool)
}

// Formatter pretty-prints a source.
type Formatter interface {
	Format(ctx context.Context, source string) (string, error)
}

// Detector picks the most likely runtime for a freshly loaded document.
type Detector interface {
	Detect(source string) *runtime.Runtime
}

// TitleUpdater derives the document title from the source.
type TitleUpdater interface {
	Update(source string) string
}

// CSPCalculator derives content-security-policy hashes from the source.
type CSPCalculator interface {
	Update(source string) []string
}

// AutoImporter receives every applied validation result.
type AutoImporter interface {
	Update(result validator.Result)
}

// TemplateFetcher loads a template document from a URL.
type TemplateFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// EmailLoader extracts the AMP part of an email file.
type EmailLoader interface {
	Load(ctx context.Context, path string) (string, error)
}

// Notifier surfaces a transient message to the user.
type Notifier interface {
	Show(message string)
}

// Params is the shareable navigation state. Push adds a history entry,
// Replace edits the current one and Pop goes back one entry.
type Params interface {
	Get(key string) (string, bool)
	Push(key, value string) error
	Replace(key, value string) error
	Pop() bool
}

// Shareable state keys.
const (
	ParamPreview = "preview"
	ParamURL     = "url"
	ParamRuntime = "runtime"
)

type nopPreview struct{}

func (nopPreview) Refresh(string) {}

type nopTitle struct{}

func (nopTitle) Update(string) string { return "" }

type nopCSP struct{}

func (nopCSP) Update(string) []string { return nil }

type nopAutoImporter struct{}

func (nopAutoImporter) Update(validator.Result) {}

type nopNotifier struct{}

func (nopNotifier) Show(string) {}

// memoryParams is used when no persisted state is configured.
type memoryParams struct {
	mu      sync.Mutex
	entries []map[string]string
}

func newMemoryParams() *memoryParams {
	return &memoryParams{entries: []map[string]string{{}}}
}

func (p *memoryParams) current() map[string]string {
	return p.entries[len(p.entries)-1]
}

func (p *memoryParams) Get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.current()[key]
	return v, ok
}

func (p *memoryParams) Push(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := maps.Clone(p.current())
	next[key] = value
	p.entries = append(p.entries, next)
	return nil
}

func (p *memoryParams) Replace(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current()[key] = value
	return nil
}

func (p *memoryParams) Pop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) <= 1 {
		return false
	}
	p.entries = p.entries[:len(p.entries)-1]
	return true
}
