// Package playground is the state-synchronization core of the playground.
//
// The Orchestrator keeps the derived views (preview, title, csp hashes and
// the displayed validation result) consistent with the current source and the
// active runtime. Once the Loop settles, every derived view is a function of
// the latest source and runtime, never of an earlier one.
//
// All orchestrator state is mutated from Loop tasks only. Collaborator calls
// that may block run on their own goroutines and deliver their result back to
// the loop tagged with the snapshot they were computed from; a result whose
// snapshot has been superseded is discarded.
package playground

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/logging"
	"github.com/Iron-Ham/playground/internal/runtime"
)

// Mode selects which derived views are maintained.
type Mode string

const (
	// ModeDefault maintains every derived view.
	ModeDefault Mode = "default"
	// ModeValidator skips csp hash recomputation.
	ModeValidator Mode = "validator"
	// ModeEmbed behaves like ModeDefault but exposes a separate hide-preview affordance.
	ModeEmbed Mode = "embed"
)

// ParseMode converts a configured mode name. Unknown names are an error.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDefault:
		return ModeDefault, nil
	case ModeValidator, ModeEmbed:
		return Mode(s), nil
	default:
		return "", errors.NewValidationError("unknown mode").WithField("mode").WithValue(s)
	}
}

// Deps are the collaborators of an Orchestrator. Bus, Registry, Loop, Editor
// and Validator are required; everything else has a no-op default.
type Deps struct {
	Bus       *event.Bus
	Registry  *runtime.Registry
	Loop      *Loop
	Editor    Editor
	Validator Validator

	Preview      Preview
	Formatter    Formatter
	Detector     Detector
	Title        TitleUpdater
	CSP          CSPCalculator
	AutoImporter AutoImporter
	Templates    TemplateFetcher
	Emails       EmailLoader
	Notifier     Notifier
	Params       Params
	Logger       *logging.Logger
}

// Options tune orchestrator behavior.
type Options struct {
	Mode Mode
	// InitialRuntime is preferred over the persisted runtime param at Start.
	InitialRuntime  string
	ValidateTimeout time.Duration
	FormatTimeout   time.Duration
	FetchTimeout    time.Duration
	// PreviewVisible is the preview visibility when no param is persisted.
	PreviewVisible bool
	ShareBaseURL   string
}

// Stats holds orchestrator counters.
type Stats struct {
	ValidationsRequested uint64
	ValidationsApplied   uint64
	ValidationsDiscarded uint64
	ValidationsFailed    uint64
	FormatsApplied       uint64
	FormatsDiscarded     uint64
	FormatsFailed        uint64
	DocumentsLoaded      uint64
}

// validationRequest is the snapshot a validation result is attributed to.
type validationRequest struct {
	generation uint64
	source     string
	runtimeID  string
}

// Orchestrator coordinates the editing surface and its derived views.
type Orchestrator struct {
	bus       *event.Bus
	registry  *runtime.Registry
	loop      *Loop
	editor    Editor
	validator Validator
	preview   Preview
	formatter Formatter
	detector  Detector
	title     TitleUpdater
	csp       CSPCalculator
	importer  AutoImporter
	templates TemplateFetcher
	emails    EmailLoader
	notifier  Notifier
	params    Params
	logger    *logging.Logger
	opts      Options

	// Loop-owned state.
	edits         uint64
	validateGen   uint64
	lastRequest   *validationRequest
	formatGen     uint64
	loadGen       uint64
	loadsInFlight int
	loading       bool
	derivedSource string
	derived       bool
	lastTitle     string
	titleSet      bool
	lastHashes    []string
	hashesSet     bool
	subscriptions []string

	// Read from any goroutine.
	affordanceMu sync.RWMutex
	affordances  map[string]bool

	validationsRequested atomic.Uint64
	validationsApplied   atomic.Uint64
	validationsDiscarded atomic.Uint64
	validationsFailed    atomic.Uint64
	formatsApplied       atomic.Uint64
	formatsDiscarded     atomic.Uint64
	formatsFailed        atomic.Uint64
	documentsLoaded      atomic.Uint64
}

// New creates an Orchestrator. It does not touch any collaborator until Start.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Bus == nil:
		return nil, errors.NewValidationError("event bus is required").WithField("Bus")
	case deps.Registry == nil:
		return nil, errors.NewValidationError("runtime registry is required").WithField("Registry")
	case deps.Loop == nil:
		return nil, errors.NewValidationError("loop is required").WithField("Loop")
	case deps.Editor == nil:
		return nil, errors.NewValidationError("editor is required").WithField("Editor")
	case deps.Validator == nil:
		return nil, errors.NewValidationError("validator is required").WithField("Validator")
	}

	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode

	o := &Orchestrator{
		bus:         deps.Bus,
		registry:    deps.Registry,
		loop:        deps.Loop,
		editor:      deps.Editor,
		validator:   deps.Validator,
		preview:     deps.Preview,
		formatter:   deps.Formatter,
		detector:    deps.Detector,
		title:       deps.Title,
		csp:         deps.CSP,
		importer:    deps.AutoImporter,
		templates:   deps.Templates,
		emails:      deps.Emails,
		notifier:    deps.Notifier,
		params:      deps.Params,
		logger:      deps.Logger,
		opts:        opts,
		affordances: make(map[string]bool),
	}

	if o.preview == nil {
		o.preview = nopPreview{}
	}
	if o.detector == nil {
		o.detector = runtime.NewDetector(o.registry)
	}
	if o.title == nil {
		o.title = nopTitle{}
	}
	if o.csp == nil {
		o.csp = nopCSP{}
	}
	if o.importer == nil {
		o.importer = nopAutoImporter{}
	}
	if o.notifier == nil {
		o.notifier = nopNotifier{}
	}
	if o.params == nil {
		o.params = newMemoryParams()
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	o.logger = o.logger.WithComponent("orchestrator")

	return o, nil
}

// Start wires the orchestrator to the bus and the editor, initializes the
// runtime registry and derives the views for the editor's current source.
// It must be called once, before the loop runs.
func (o *Orchestrator) Start() error {
	o.subscriptions = append(o.subscriptions,
		o.bus.Subscribe(event.TopicRuntimeChanged, o.handleRuntimeChanged),
		o.bus.Subscribe(event.TopicSourceChanged, o.handleSourceChanged),
		o.bus.Subscribe(event.TopicValidationCompleted, o.handleValidationCompleted),
	)
	o.editor.OnChange(o.onEditorChange)

	preferred := o.opts.InitialRuntime
	if preferred == "" {
		preferred, _ = o.params.Get(ParamRuntime)
	}
	if err := o.registry.Init(preferred); err != nil {
		o.Stop()
		return fmt.Errorf("failed to initialize runtimes: %w", err)
	}

	o.restorePreview()
	o.runPipeline(o.editor.Source())

	o.logger.Info("orchestrator started",
		"runtime", o.registry.Active().ID,
		"mode", string(o.opts.Mode),
	)
	return nil
}

// Stop unsubscribes from the bus. In-flight results arriving later are ignored
// once the loop stops.
func (o *Orchestrator) Stop() {
	for _, id := range o.subscriptions {
		o.bus.Unsubscribe(id)
	}
	o.subscriptions = nil
}

// Stats returns a snapshot of the orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		ValidationsRequested: o.validationsRequested.Load(),
		ValidationsApplied:   o.validationsApplied.Load(),
		ValidationsDiscarded: o.validationsDiscarded.Load(),
		ValidationsFailed:    o.validationsFailed.Load(),
		FormatsApplied:       o.formatsApplied.Load(),
		FormatsDiscarded:     o.formatsDiscarded.Load(),
		FormatsFailed:        o.formatsFailed.Load(),
		DocumentsLoaded:      o.documentsLoaded.Load(),
	}
}

// AffordanceEnabled reports the current state of a named UI affordance.
func (o *Orchestrator) AffordanceEnabled(name string) bool {
	o.affordanceMu.RLock()
	defer o.affordanceMu.RUnlock()
	return o.affordances[name]
}

// Registry returns the runtime registry.
func (o *Orchestrator) Registry() *runtime.Registry {
	return o.registry
}

// setAffordance publishes only when the state actually changes.
func (o *Orchestrator) setAffordance(name string, enabled bool) {
	o.affordanceMu.Lock()
	prev, known := o.affordances[name]
	o.affordances[name] = enabled
	o.affordanceMu.Unlock()

	if known && prev == enabled {
		return
	}
	o.bus.Publish(event.NewAffordanceChangedEvent(name, enabled))
}

// fail surfaces user-facing errors and logs the rest.
func (o *Orchestrator) fail(operation string, err error) {
	if errors.IsUserFacing(err) {
		o.logger.Warn("operation failed", "operation", operation, "error", err.Error())
		o.notify(err.Error(), errors.GetSeverity(err))
		return
	}
	o.logger.Error("operation failed", "operation", operation, "error", err.Error())
}

func (o *Orchestrator) notify(message string, severity errors.Severity) {
	o.notifier.Show(message)
	o.bus.Publish(event.NewNotificationEvent(message, severity.String()))
}
