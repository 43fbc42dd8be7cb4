package playground

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/playground/internal/editor"
	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/notify"
	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/testutil"
	"github.com/Iron-Ham/playground/internal/validator"
)

var (
	pass = validator.Result{Status: validator.StatusPass}
	fail = validator.Result{
		Status: validator.StatusFail,
		Errors: []validator.Error{{Severity: validator.SeverityError, Line: 1, Code: "MANDATORY_TAG_MISSING"}},
	}
)

// harness wires an orchestrator to in-memory collaborators.
type harness struct {
	t         *testing.T
	bus       *event.Bus
	registry  *runtime.Registry
	loop      *Loop
	buffer    *editor.Buffer
	preview   *testutil.RecordingPreview
	notifier  *notify.Recorder
	params    *memoryParams
	orch      *Orchestrator
	eventsMu  sync.Mutex
	published []event.Event
}

type harnessConfig struct {
	source   string
	runtimes []runtime.Runtime
	opts     Options
	deps     func(*Deps)
}

func newHarness(t *testing.T, validate Validator, cfg harnessConfig) *harness {
	t.Helper()

	runtimes := cfg.runtimes
	if runtimes == nil {
		runtimes = runtime.Defaults()
	}

	h := &harness{
		t:        t,
		bus:      event.NewBus(),
		loop:     NewLoop(nil),
		buffer:   editor.NewBuffer(cfg.source),
		preview:  &testutil.RecordingPreview{},
		notifier: &notify.Recorder{},
		params:   newMemoryParams(),
	}
	h.registry = runtime.NewRegistry(h.bus, runtimes...)
	h.bus.SubscribeAll(func(e event.Event) {
		h.eventsMu.Lock()
		defer h.eventsMu.Unlock()
		h.published = append(h.published, e)
	})

	deps := Deps{
		Bus:       h.bus,
		Registry:  h.registry,
		Loop:      h.loop,
		Editor:    h.buffer,
		Validator: validate,
		Preview:   h.preview,
		Notifier:  h.notifier,
		Params:    h.params,
	}
	if cfg.deps != nil {
		cfg.deps(&deps)
	}

	o, err := New(deps, cfg.opts)
	require.NoError(t, err)
	h.orch = o
	require.NoError(t, o.Start())
	t.Cleanup(o.Stop)
	runLoop(t, h.loop)
	return h
}

// eventsOf returns the published events on topic.
func (h *harness) eventsOf(topic string) []event.Event {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	var out []event.Event
	for _, e := range h.published {
		if e.EventType() == topic {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) template(id string) string {
	h.t.Helper()
	rt, ok := h.registry.Get(id)
	require.True(h.t, ok, "runtime %s not registered", id)
	return rt.Template
}

func (h *harness) displayed() validator.Result {
	h.t.Helper()
	result, ok := h.buffer.ValidationResult()
	require.True(h.t, ok, "no validation result displayed")
	return result
}

func TestNew_RequiresCoreCollaborators(t *testing.T) {
	bus := event.NewBus()
	full := Deps{
		Bus:       bus,
		Registry:  runtime.NewRegistry(bus, runtime.Defaults()...),
		Loop:      NewLoop(nil),
		Editor:    editor.NewBuffer(""),
		Validator: testutil.NewStubValidator(),
	}

	tests := []struct {
		name  string
		strip func(*Deps)
	}{
		{"bus", func(d *Deps) { d.Bus = nil }},
		{"registry", func(d *Deps) { d.Registry = nil }},
		{"loop", func(d *Deps) { d.Loop = nil }},
		{"editor", func(d *Deps) { d.Editor = nil }},
		{"validator", func(d *Deps) { d.Validator = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.strip(&deps)
			_, err := New(deps, Options{})
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}

	_, err := New(full, Options{Mode: "kiosk"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestStart_ValidatesInitialSourceOnce(t *testing.T) {
	gv := testutil.NewGatedValidator()
	h := newHarness(t, gv, harnessConfig{source: "<html amp></html>"})

	call := gv.Next(t)
	assert.Equal(t, "<html amp></html>", call.Source)
	assert.Equal(t, validator.ProfileAMP, call.Profile)
	call.Resolve(fail)
	h.loop.Settle()

	gv.ExpectNone(t)
	assert.Equal(t, fail, h.displayed())
	assert.Equal(t, []string{"<html amp></html>"}, h.preview.Refreshes())
	assert.Equal(t, runtime.IDWebsites, h.registry.Active().ID)
}

func TestStart_UsesPersistedRuntime(t *testing.T) {
	stub := testutil.NewStubValidator()
	h := newHarness(t, stub, harnessConfig{
		source: "<p>x</p>",
		deps: func(d *Deps) {
			p := newMemoryParams()
			_ = p.Replace(ParamRuntime, runtime.IDAds)
			d.Params = p
		},
	})
	h.loop.Settle()

	assert.Equal(t, runtime.IDAds, h.registry.Active().ID)
	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, validator.ProfileAMP4Ads, calls[0].Profile)
}

func TestStart_InitialRuntimeOverridesParams(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		opts: Options{InitialRuntime: runtime.IDEmail},
		deps: func(d *Deps) {
			p := newMemoryParams()
			_ = p.Replace(ParamRuntime, runtime.IDAds)
			d.Params = p
		},
	})
	h.loop.Settle()

	assert.Equal(t, runtime.IDEmail, h.registry.Active().ID)
	assert.True(t, h.orch.AffordanceEnabled(event.AffordanceImportEmail))
}

func TestStart_UnknownRuntimeFallsBackToFirst(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		opts: Options{InitialRuntime: "amp4foo"},
	})
	h.loop.Settle()

	assert.Equal(t, runtime.IDWebsites, h.registry.Active().ID)
	v, _ := h.params.Get(ParamRuntime)
	assert.Equal(t, runtime.IDWebsites, v)
}

func TestStart_FailsWithoutRuntimes(t *testing.T) {
	bus := event.NewBus()
	o, err := New(Deps{
		Bus:       bus,
		Registry:  runtime.NewRegistry(bus),
		Loop:      NewLoop(nil),
		Editor:    editor.NewBuffer(""),
		Validator: testutil.NewStubValidator(),
	}, Options{})
	require.NoError(t, err)

	err = o.Start()
	assert.ErrorIs(t, err, errors.ErrNoRuntimes)
	assert.Zero(t, bus.SubscriptionCount())
}

func TestValidation_StaleResultIsDiscarded(t *testing.T) {
	gv := testutil.NewGatedValidator()
	h := newHarness(t, gv, harnessConfig{source: "<html amp>one</html>"})
	first := gv.Next(t)

	h.buffer.SetSource("<html amp>two</html>")
	second := gv.Next(t)
	assert.Equal(t, "<html amp>two</html>", second.Source)

	// The newer result arrives first; the older one must not overwrite it.
	second.Resolve(pass)
	first.Resolve(fail)
	h.loop.Settle()

	assert.Equal(t, pass, h.displayed())
	stats := h.orch.Stats()
	assert.Equal(t, uint64(1), stats.ValidationsApplied)
	assert.Equal(t, uint64(1), stats.ValidationsDiscarded)
	require.Len(t, h.eventsOf(event.TopicValidationDiscarded), 1)
	discarded := h.eventsOf(event.TopicValidationDiscarded)[0].(event.ValidationDiscardedEvent)
	assert.Equal(t, uint64(1), discarded.Generation)
	assert.Equal(t, uint64(2), discarded.Current)
}

func TestValidation_ResultForSupersededSourceIsDiscarded(t *testing.T) {
	gv := testutil.NewGatedValidator()
	h := newHarness(t, gv, harnessConfig{source: "<html amp>one</html>"})
	first := gv.Next(t)

	h.buffer.SetSource("<html amp>two</html>")
	second := gv.Next(t)

	first.Resolve(pass)
	second.Resolve(fail)
	h.loop.Settle()

	assert.Equal(t, fail, h.displayed())
	assert.Len(t, h.eventsOf(event.TopicValidationApplied), 1)
}

func TestValidation_RuntimeSwitchMakesInFlightResultStale(t *testing.T) {
	gv := testutil.NewGatedValidator()
	h := newHarness(t, gv, harnessConfig{source: "<html>edited</html>"})
	first := gv.Next(t)

	require.NoError(t, h.orch.SelectRuntime(runtime.IDEmail))
	second := gv.Next(t)
	assert.Equal(t, validator.ProfileAMP4Email, second.Profile)
	assert.Equal(t, "<html>edited</html>", second.Source)

	first.Resolve(pass)
	testutil.Eventually(t, 2*time.Second, func() bool {
		return h.orch.Stats().ValidationsDiscarded == 1
	}, "first result discarded")
	_, shown := h.buffer.ValidationResult()
	assert.False(t, shown, "result computed for the previous runtime must not be shown")

	// Drive the pending call to completion so the loop can settle again.
	second.Resolve(fail)
	h.loop.Settle()
	assert.Equal(t, fail, h.displayed())

	applied := h.eventsOf(event.TopicValidationApplied)
	require.Len(t, applied, 1)
	assert.Equal(t, runtime.IDEmail, applied[0].(event.ValidationAppliedEvent).RuntimeID)
}

func TestValidation_FailureIsReportedAndRetried(t *testing.T) {
	gv := testutil.NewGatedValidator()
	h := newHarness(t, gv, harnessConfig{source: "<html amp></html>"})

	gv.Next(t).Reject(errors.New("validator crashed"))
	h.loop.Settle()

	require.Equal(t, 1, h.notifier.Len())
	assert.Contains(t, h.notifier.Messages()[0], "validator crashed")
	assert.Equal(t, uint64(1), h.orch.Stats().ValidationsFailed)

	// Re-selecting the same runtime requests the same snapshot again.
	require.NoError(t, h.orch.SelectRuntime(runtime.IDWebsites))
	retry := gv.Next(t)
	assert.Equal(t, "<html amp></html>", retry.Source)
	retry.Resolve(pass)
	h.loop.Settle()

	assert.Equal(t, pass, h.displayed())
}

func TestValidation_RetryableFailureIsRetriedOnce(t *testing.T) {
	crash := func() error {
		return errors.NewCollaboratorUnavailableError("validator", errors.New("killed")).WithRetryable(true)
	}

	t.Run("recovers", func(t *testing.T) {
		gv := testutil.NewGatedValidator()
		h := newHarness(t, gv, harnessConfig{source: "<html amp></html>"})

		gv.Next(t).Reject(crash())
		gv.Next(t).Resolve(pass)
		h.loop.Settle()

		assert.Equal(t, pass, h.displayed())
		assert.Zero(t, h.notifier.Len())
		assert.Zero(t, h.orch.Stats().ValidationsFailed)
	})

	t.Run("gives up", func(t *testing.T) {
		gv := testutil.NewGatedValidator()
		h := newHarness(t, gv, harnessConfig{source: "<html amp></html>"})

		gv.Next(t).Reject(crash())
		gv.Next(t).Reject(crash())
		h.loop.Settle()
		gv.ExpectNone(t)

		require.Equal(t, 1, h.notifier.Len())
		assert.Contains(t, h.notifier.Messages()[0], "killed")
		assert.Equal(t, uint64(1), h.orch.Stats().ValidationsFailed)
	})
}

func TestValidation_AutoImporterSeesAppliedResults(t *testing.T) {
	var mu sync.Mutex
	var seen []validator.Result
	importer := autoImporterFunc(func(r validator.Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r)
	})

	gv := testutil.NewGatedValidator()
	h := newHarness(t, gv, harnessConfig{
		source: "<html amp>one</html>",
		deps:   func(d *Deps) { d.AutoImporter = importer },
	})
	first := gv.Next(t)
	h.buffer.SetSource("<html amp>two</html>")
	second := gv.Next(t)
	first.Resolve(pass)
	second.Resolve(fail)
	h.loop.Settle()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []validator.Result{fail}, seen)
}

type autoImporterFunc func(validator.Result)

func (f autoImporterFunc) Update(r validator.Result) { f(r) }

func TestRuntimeSwitch_ReplacesUneditedTemplate(t *testing.T) {
	gv := testutil.NewGatedValidator()
	websites := runtime.Defaults()[0].Template
	h := newHarness(t, gv, harnessConfig{source: websites})
	first := gv.Next(t)

	require.NoError(t, h.orch.SelectRuntime(runtime.IDEmail))
	second := gv.Next(t)
	first.Resolve(pass)
	second.Resolve(pass)
	h.loop.Settle()

	emailTemplate := h.template(runtime.IDEmail)
	assert.Equal(t, emailTemplate, h.buffer.Source())
	assert.Equal(t, emailTemplate, second.Source)
	assert.Equal(t, validator.ProfileAMP4Email, second.Profile)
	gv.ExpectNone(t)

	refreshes := h.preview.Refreshes()
	assert.Equal(t, emailTemplate, refreshes[len(refreshes)-1])
}

func TestRuntimeSwitch_KeepsEditedSource(t *testing.T) {
	stub := testutil.NewStubValidator()
	edited := runtime.Defaults()[0].Template + "<!-- mine -->"
	h := newHarness(t, stub, harnessConfig{source: edited})

	require.NoError(t, h.orch.SelectRuntime(runtime.IDEmail))
	h.loop.Settle()

	assert.Equal(t, edited, h.buffer.Source())
	assert.Equal(t, runtime.IDEmail, h.registry.Active().ID)
	calls := stub.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, validator.ProfileAMP4Email, calls[1].Profile)
}

func TestRuntimeSwitch_UnknownRuntime(t *testing.T) {
	stub := testutil.NewStubValidator()
	h := newHarness(t, stub, harnessConfig{source: "<p>x</p>"})

	err := h.orch.SelectRuntime("amp4foo")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownRuntime)
	var unavailable *errors.CollaboratorUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "amp4foo", unavailable.ID)

	h.loop.Settle()
	assert.Equal(t, runtime.IDWebsites, h.registry.Active().ID)
	assert.Len(t, stub.Calls(), 1)
}

func TestRuntimeSwitch_AffordanceFollowsRuntime(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{source: "<p>x</p>"})
	h.loop.Settle()
	assert.False(t, h.orch.AffordanceEnabled(event.AffordanceImportEmail))

	require.NoError(t, h.orch.NextRuntime())
	h.loop.Settle()
	assert.Equal(t, runtime.IDEmail, h.registry.Active().ID)
	assert.True(t, h.orch.AffordanceEnabled(event.AffordanceImportEmail))

	v, _ := h.params.Get(ParamRuntime)
	assert.Equal(t, runtime.IDEmail, v)

	require.NoError(t, h.orch.NextRuntime())
	h.loop.Settle()
	assert.Equal(t, runtime.IDAds, h.registry.Active().ID)
	assert.False(t, h.orch.AffordanceEnabled(event.AffordanceImportEmail))

	var changes []bool
	for _, e := range h.eventsOf(event.TopicAffordanceChanged) {
		if ev := e.(event.AffordanceChangedEvent); ev.Name == event.AffordanceImportEmail {
			changes = append(changes, ev.Enabled)
		}
	}
	assert.Equal(t, []bool{false, true, false}, changes)
}

func TestLoadDocument_KeepsContentVerbatim(t *testing.T) {
	// The loaded document is exactly the previous runtime's template but is
	// detected as another runtime. It must not be swapped for a template.
	runtimes := []runtime.Runtime{
		{ID: "a", Name: "A", Profile: validator.ProfileAMP, Markers: []string{"a"}, Template: "<html b>shared</html>"},
		{ID: "b", Name: "B", Profile: validator.ProfileAMP4Email, Markers: []string{"b"}, Template: "<html b>b template</html>"},
	}
	stub := testutil.NewStubValidator()
	h := newHarness(t, stub, harnessConfig{source: "<html a>start</html>", runtimes: runtimes})
	h.loop.Settle()

	require.True(t, h.orch.LoadDocument("<html b>shared</html>", "share-link"))
	h.loop.Settle()

	assert.Equal(t, "<html b>shared</html>", h.buffer.Source())
	assert.Equal(t, "b", h.registry.Active().ID)
	assert.Equal(t, uint64(1), h.orch.Stats().DocumentsLoaded)

	calls := stub.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "<html b>shared</html>", calls[1].Source)
	assert.Equal(t, validator.ProfileAMP4Email, calls[1].Profile)

	loaded := h.eventsOf(event.TopicSourceLoaded)
	require.Len(t, loaded, 1)
	assert.Equal(t, "share-link", loaded[0].(event.SourceLoadedEvent).Origin)
}

func TestDerivedViews_NotRecomputedForSameSource(t *testing.T) {
	stub := testutil.NewStubValidator()
	h := newHarness(t, stub, harnessConfig{source: "<p>one</p>"})

	h.buffer.SetSource("<p>two</p>")
	h.buffer.SetSource("<p>one</p>")
	h.buffer.SetSource("<p>two</p>")
	h.loop.Settle()

	// Each change is observed, but derived views only follow real changes.
	assert.Len(t, h.eventsOf(event.TopicSourceChanged), 3)
	refreshes := h.preview.Refreshes()
	assert.Equal(t, "<p>two</p>", refreshes[len(refreshes)-1])
	for i := 1; i < len(refreshes); i++ {
		assert.NotEqual(t, refreshes[i-1], refreshes[i], "consecutive identical refreshes")
	}
}

func TestPipeline_ValidatorModeSkipsCSP(t *testing.T) {
	tests := []struct {
		mode    Mode
		wantCSP bool
	}{
		{ModeDefault, true},
		{ModeEmbed, true},
		{ModeValidator, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var calls int
			var mu sync.Mutex
			h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
				source: "<p>x</p>",
				opts:   Options{Mode: tt.mode},
				deps: func(d *Deps) {
					d.CSP = cspFunc(func(string) []string {
						mu.Lock()
						defer mu.Unlock()
						calls++
						return []string{"sha384-abc"}
					})
				},
			})
			h.buffer.SetSource("<p>y</p>")
			h.loop.Settle()

			mu.Lock()
			defer mu.Unlock()
			if tt.wantCSP {
				assert.Equal(t, 2, calls)
				// Both sources hash the same: published once.
				assert.Len(t, h.eventsOf(event.TopicCSPUpdated), 1)
			} else {
				assert.Zero(t, calls)
				assert.Empty(t, h.eventsOf(event.TopicCSPUpdated))
			}
			// Title and preview are kept current in every mode.
			assert.Len(t, h.eventsOf(event.TopicTitleChanged), 1)
			assert.Len(t, h.preview.Refreshes(), 2)
		})
	}
}

type cspFunc func(string) []string

func (f cspFunc) Update(s string) []string { return f(s) }

type titleFunc func(string) string

func (f titleFunc) Update(s string) string { return f(s) }

func TestPipeline_PublishesTitleAndHashesOnChange(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<title>A</title>",
		deps: func(d *Deps) {
			d.Title = titleFunc(func(s string) string {
				return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "<title>"), "</title>")
			})
			d.CSP = cspFunc(func(s string) []string {
				if strings.Contains(s, "B") {
					return []string{"sha384-b"}
				}
				return []string{"sha384-a"}
			})
		},
	})
	h.loop.Settle()

	h.buffer.SetSource("<title>A</title> ")
	h.loop.Settle()
	h.buffer.SetSource("<title>B</title>")
	h.loop.Settle()

	var titles []string
	for _, e := range h.eventsOf(event.TopicTitleChanged) {
		titles = append(titles, e.(event.TitleChangedEvent).Title)
	}
	assert.Equal(t, []string{"A", "B"}, titles)

	var hashes [][]string
	for _, e := range h.eventsOf(event.TopicCSPUpdated) {
		hashes = append(hashes, e.(event.CSPHashesEvent).Hashes)
	}
	assert.Equal(t, [][]string{{"sha384-a"}, {"sha384-b"}}, hashes)
}

func TestFormat_AppliesResult(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>  x  </p>",
		deps: func(d *Deps) {
			d.Formatter = testutil.FuncFormatter(func(s string) (string, error) {
				return strings.ReplaceAll(s, "  ", ""), nil
			})
		},
	})

	require.True(t, h.orch.Format())
	h.loop.Settle()

	assert.Equal(t, "<p>x</p>", h.buffer.Source())
	assert.Equal(t, uint64(1), h.orch.Stats().FormatsApplied)
	completed := h.eventsOf(event.TopicFormatCompleted)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].(event.FormatCompletedEvent).Applied)
}

func TestFormat_DiscardedWhenSourceChanged(t *testing.T) {
	gf := testutil.NewGatedFormatter()
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps:   func(d *Deps) { d.Formatter = gf },
	})

	require.True(t, h.orch.Format())
	call := gf.Next(t)
	h.buffer.SetSource("<p>typed meanwhile</p>")
	call.Resolve("<p>\n  x\n</p>")
	h.loop.Settle()

	assert.Equal(t, "<p>typed meanwhile</p>", h.buffer.Source())
	assert.Equal(t, uint64(1), h.orch.Stats().FormatsDiscarded)
	assert.Zero(t, h.notifier.Len())
}

func TestFormat_OnlyLatestRequestApplies(t *testing.T) {
	gf := testutil.NewGatedFormatter()
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps:   func(d *Deps) { d.Formatter = gf },
	})

	require.True(t, h.orch.Format())
	first := gf.Next(t)
	require.True(t, h.orch.Format())
	second := gf.Next(t)

	second.Resolve("second")
	first.Resolve("first")
	h.loop.Settle()

	assert.Equal(t, "second", h.buffer.Source())
	stats := h.orch.Stats()
	assert.Equal(t, uint64(1), stats.FormatsApplied)
	assert.Equal(t, uint64(1), stats.FormatsDiscarded)
}

func TestFormat_FailureIsSurfaced(t *testing.T) {
	gf := testutil.NewGatedFormatter()
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps:   func(d *Deps) { d.Formatter = gf },
	})

	require.True(t, h.orch.Format())
	gf.Next(t).Reject(errors.New("unexpected closing tag"))
	h.loop.Settle()

	assert.Equal(t, "<p>x</p>", h.buffer.Source())
	require.Equal(t, 1, h.notifier.Len())
	msg := h.notifier.Messages()[0]
	assert.Contains(t, msg, "could not format source")
	assert.Contains(t, msg, "unexpected closing tag")
	assert.Len(t, h.eventsOf(event.TopicNotification), 1)
}

func TestFormat_WithoutFormatter(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{source: "<p>x</p>"})

	require.True(t, h.orch.Format())
	h.loop.Settle()

	require.Equal(t, 1, h.notifier.Len())
	assert.Contains(t, h.notifier.Messages()[0], "no formatter configured")
	notes := h.eventsOf(event.TopicNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "info", notes[0].(event.NotificationEvent).Severity)
}

func TestLoadTemplate(t *testing.T) {
	const templateURL = "https://example.com/templates/hello.html"
	const content = "<html ⚡4email><body>hello</body></html>"

	var sawLoading bool
	var h *harness
	h = newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps: func(d *Deps) {
			d.Templates = testutil.FuncFetcher(func(u string) (string, error) {
				sawLoading = h.buffer.Loading()
				assert.Equal(t, templateURL, u)
				return content, nil
			})
		},
	})

	require.True(t, h.orch.LoadTemplate(templateURL))
	h.loop.Settle()

	assert.True(t, sawLoading, "loading indicator should be shown while fetching")
	assert.False(t, h.buffer.Loading())
	assert.Equal(t, content, h.buffer.Source())
	assert.Equal(t, runtime.IDEmail, h.registry.Active().ID)

	v, ok := h.params.Get(ParamURL)
	require.True(t, ok)
	assert.Equal(t, templateURL, v)
	assert.Len(t, h.eventsOf(event.TopicTemplateLoaded), 1)
	assert.Len(t, h.eventsOf(event.TopicLoadingStarted), 1)
	assert.Len(t, h.eventsOf(event.TopicLoadingFinished), 1)
}

func TestLoadTemplate_FailureKeepsSource(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps: func(d *Deps) {
			d.Templates = testutil.FuncFetcher(func(string) (string, error) {
				return "", errors.ErrTemplateFetch
			})
		},
	})

	require.True(t, h.orch.LoadTemplate("https://example.com/missing.html"))
	h.loop.Settle()

	assert.Equal(t, "<p>x</p>", h.buffer.Source())
	assert.False(t, h.buffer.Loading())
	_, ok := h.params.Get(ParamURL)
	assert.False(t, ok)
	require.Equal(t, 1, h.notifier.Len())
	assert.Contains(t, h.notifier.Messages()[0], "could not load template")
}

func TestImportEmail(t *testing.T) {
	const amp = "<html ⚡4email><body>hi</body></html>"
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps: func(d *Deps) {
			d.Emails = testutil.FuncEmailLoader(func(string) (string, error) { return amp, nil })
			d.Formatter = testutil.FuncFormatter(func(s string) (string, error) { return s + "\n", nil })
		},
	})

	require.True(t, h.orch.ImportEmail("/tmp/message.eml"))
	h.loop.Settle()

	assert.Equal(t, amp+"\n", h.buffer.Source())
	assert.Equal(t, runtime.IDEmail, h.registry.Active().ID)
	assert.True(t, h.orch.AffordanceEnabled(event.AffordanceImportEmail))
	assert.Len(t, h.eventsOf(event.TopicEmailImported), 1)
	assert.Zero(t, h.notifier.Len())
}

func TestImportEmail_FailureAtEitherStage(t *testing.T) {
	tests := []struct {
		name   string
		load   func(string) (string, error)
		format func(string) (string, error)
		want   string
	}{
		{
			name:   "load",
			load:   func(string) (string, error) { return "", errors.ErrNoAMPPart },
			format: func(s string) (string, error) { return s, nil },
			want:   "no AMP",
		},
		{
			name:   "format",
			load:   func(string) (string, error) { return "<html ⚡4email></html>", nil },
			format: func(string) (string, error) { return "", errors.New("parse error") },
			want:   "parse error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
				source: "<p>x</p>",
				deps: func(d *Deps) {
					d.Emails = testutil.FuncEmailLoader(tt.load)
					d.Formatter = testutil.FuncFormatter(tt.format)
				},
			})

			require.True(t, h.orch.ImportEmail("/tmp/message.eml"))
			h.loop.Settle()

			assert.Equal(t, "<p>x</p>", h.buffer.Source())
			assert.Equal(t, runtime.IDWebsites, h.registry.Active().ID)
			assert.False(t, h.buffer.Loading())
			require.Equal(t, 1, h.notifier.Len())
			msg := h.notifier.Messages()[0]
			assert.Contains(t, msg, "could not load email")
			assert.Contains(t, strings.ToLower(msg), strings.ToLower(tt.want))
			assert.Empty(t, h.eventsOf(event.TopicEmailImported))
		})
	}
}

func TestLoads_LaterLoadSupersedesEarlier(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps: func(d *Deps) {
			d.Templates = testutil.FuncFetcher(func(u string) (string, error) {
				if strings.HasSuffix(u, "slow.html") {
					<-release
				}
				return "<html amp>" + u + "</html>", nil
			})
		},
	})

	require.True(t, h.orch.LoadTemplate("https://example.com/slow.html"))
	require.True(t, h.orch.LoadTemplate("https://example.com/fast.html"))
	testutil.Eventually(t, 2*time.Second, func() bool {
		return len(h.eventsOf(event.TopicTemplateLoaded)) == 1
	}, "fast template loaded")
	close(release)
	h.loop.Settle()

	assert.Equal(t, "<html amp>https://example.com/fast.html</html>", h.buffer.Source())
	assert.Len(t, h.eventsOf(event.TopicTemplateLoaded), 1)
	v, _ := h.params.Get(ParamURL)
	assert.Equal(t, "https://example.com/fast.html", v)
}

func TestLoads_IndicatorStaysUntilLastLoadFinishes(t *testing.T) {
	started := make(chan string, 2)
	release := map[string]chan struct{}{
		"https://example.com/slow.html": make(chan struct{}),
		"https://example.com/fast.html": make(chan struct{}),
	}
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		deps: func(d *Deps) {
			d.Templates = testutil.FuncFetcher(func(u string) (string, error) {
				started <- u
				<-release[u]
				return "<html amp>" + u + "</html>", nil
			})
		},
	})

	require.True(t, h.orch.LoadTemplate("https://example.com/slow.html"))
	require.True(t, h.orch.LoadTemplate("https://example.com/fast.html"))
	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for both fetches to start")
		}
	}

	close(release["https://example.com/slow.html"])
	testutil.Eventually(t, 2*time.Second, func() bool {
		return len(h.eventsOf(event.TopicLoadingFinished)) == 1
	}, "superseded load finished")
	assert.True(t, h.buffer.Loading(), "indicator must stay while the newer fetch is in flight")
	assert.Equal(t, "<p>x</p>", h.buffer.Source())

	close(release["https://example.com/fast.html"])
	h.loop.Settle()

	assert.False(t, h.buffer.Loading())
	assert.Equal(t, "<html amp>https://example.com/fast.html</html>", h.buffer.Source())
	assert.Len(t, h.eventsOf(event.TopicLoadingFinished), 2)
}

func TestApplyEdit_RunsOnTheLoop(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{source: "<p>x</p>"})
	h.loop.Settle()

	blocked := make(chan struct{})
	unblock := make(chan struct{})
	require.True(t, h.loop.Post(func() {
		close(blocked)
		<-unblock
	}))
	<-blocked

	require.True(t, h.orch.ApplyEdit("<p>saved</p>"))
	assert.Equal(t, "<p>x</p>", h.buffer.Source(), "edit must wait for the running task")

	close(unblock)
	h.loop.Settle()
	assert.Equal(t, "<p>saved</p>", h.buffer.Source())
	assert.Equal(t, "<p>saved</p>", h.preview.Refreshes()[len(h.preview.Refreshes())-1])
}

// savingEditor delivers an external save the first time the source is read
// after save is armed, the way a file watcher would race a pending write.
type savingEditor struct {
	*editor.Buffer
	save atomic.Pointer[func()]
}

func (e *savingEditor) Source() string {
	source := e.Buffer.Source()
	if f := e.save.Swap(nil); f != nil {
		(*f)()
	}
	return source
}

func TestFormat_ExternalSaveDuringCompletionIsKept(t *testing.T) {
	gf := testutil.NewGatedFormatter()
	var ed *savingEditor
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "x=1",
		deps: func(d *Deps) {
			ed = &savingEditor{Buffer: d.Editor.(*editor.Buffer)}
			d.Editor = ed
			d.Formatter = gf
		},
	})
	h.loop.Settle()

	require.True(t, h.orch.Format())
	call := gf.Next(t)
	save := func() { h.orch.ApplyEdit("USER EDIT") }
	ed.save.Store(&save)
	call.Resolve("x = 1;")
	h.loop.Settle()

	assert.Equal(t, "USER EDIT", h.buffer.Source())
}

func TestPreview_ShowHideBack(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: "<p>x</p>",
		opts:   Options{PreviewVisible: true, Mode: ModeEmbed},
	})
	h.loop.Settle()
	assert.True(t, h.preview.Visible())
	assert.True(t, h.orch.AffordanceEnabled(event.AffordancePreview))
	assert.True(t, h.orch.AffordanceEnabled(event.AffordanceHidePreview))

	require.True(t, h.orch.HidePreview())
	h.loop.Settle()
	assert.False(t, h.preview.Visible())
	assert.False(t, h.orch.AffordanceEnabled(event.AffordanceHidePreview))

	require.True(t, h.orch.ShowPreview())
	require.True(t, h.orch.HidePreview())
	h.loop.Settle()
	assert.False(t, h.preview.Visible())

	require.True(t, h.orch.Back())
	h.loop.Settle()
	assert.True(t, h.preview.Visible())

	require.True(t, h.orch.Back())
	h.loop.Settle()
	assert.False(t, h.preview.Visible())

	// Back at the first entry, visibility falls back to the default.
	require.True(t, h.orch.Back())
	h.loop.Settle()
	assert.True(t, h.preview.Visible())
	v, ok := h.params.Get(ParamPreview)
	assert.False(t, ok, "first history entry has no preview param, got %q", v)
}

func TestShareURL(t *testing.T) {
	const source = "<html ⚡4email><body>hi</body></html>"
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{
		source: source,
		opts:   Options{ShareBaseURL: "https://playground.example/?mode=embed", InitialRuntime: runtime.IDEmail},
	})
	h.loop.Settle()
	require.NoError(t, h.params.Replace(ParamURL, "https://example.com/t.html"))

	link, err := h.orch.ShareURL()
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "playground.example", u.Host)
	assert.Equal(t, "embed", u.Query().Get("mode"))
	assert.Equal(t, runtime.IDEmail, u.Query().Get(ParamRuntime))
	assert.Equal(t, "https://example.com/t.html", u.Query().Get(ParamURL))

	require.True(t, strings.HasPrefix(u.Fragment, "src="))
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(u.Fragment, "src="))
	require.NoError(t, err)
	assert.Equal(t, source, string(decoded))
}

func TestShareURL_RequiresBaseURL(t *testing.T) {
	h := newHarness(t, testutil.NewStubValidator(), harnessConfig{source: "<p>x</p>"})
	_, err := h.orch.ShareURL()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestOrchestrator_RejectsAfterLoopStops(t *testing.T) {
	bus := event.NewBus()
	loop := NewLoop(nil)
	o, err := New(Deps{
		Bus:       bus,
		Registry:  runtime.NewRegistry(bus, runtime.Defaults()...),
		Loop:      loop,
		Editor:    editor.NewBuffer(""),
		Validator: testutil.NewStubValidator(),
	}, Options{})
	require.NoError(t, err)
	require.NoError(t, o.Start())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = loop.Run(ctx)

	assert.False(t, o.Format())
	assert.ErrorIs(t, o.SelectRuntime(runtime.IDEmail), errors.ErrLoopStopped)
}
