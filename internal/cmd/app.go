package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/playground/internal/action"
	"github.com/Iron-Ham/playground/internal/autoimport"
	"github.com/Iron-Ham/playground/internal/config"
	"github.com/Iron-Ham/playground/internal/document"
	"github.com/Iron-Ham/playground/internal/editor"
	"github.com/Iron-Ham/playground/internal/email"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/formatter"
	"github.com/Iron-Ham/playground/internal/logging"
	"github.com/Iron-Ham/playground/internal/notify"
	"github.com/Iron-Ham/playground/internal/params"
	"github.com/Iron-Ham/playground/internal/playground"
	"github.com/Iron-Ham/playground/internal/preview"
	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/template"
	"github.com/Iron-Ham/playground/internal/validator"
)

// appOptions are the per-command inputs to newApp.
type appOptions struct {
	// source is the editor content at startup.
	source string
	// runtime overrides runtime.initial.
	runtime string
	// notifyOut receives user-facing messages; nil only records them.
	notifyOut io.Writer
	plain     bool
	// persist keeps navigation state in the state file.
	persist bool
}

// app is one playground session: the orchestrator and everything it is
// wired to.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	registry *runtime.Registry
	runtimes []runtime.Runtime
	loop     *playground.Loop
	buffer   *editor.Buffer
	orch     *playground.Orchestrator
	bindings *action.Bindings
	title    *document.TitleUpdater
	csp      *document.CSPCalculator
	preview  *preview.File
	params   *params.Store
	fetcher  *template.HTTPFetcher
	notes    *notify.Recorder
	traceID  string

	cancel context.CancelFunc
	done   chan error
}

// newApp builds a session from cfg. Nothing runs until start.
func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	runtimes, err := cfg.BuildRuntimes()
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		runtimes: runtimes,
		buffer:   editor.NewBuffer(opts.source),
		title:    document.NewTitleUpdater(""),
		csp:      document.NewCSPCalculator(),
		notes:    &notify.Recorder{},
	}
	a.bus = event.NewBus(event.WithLogger(logger))
	a.registry = runtime.NewRegistry(a.bus, runtimes...)
	a.loop = playground.NewLoop(logger)

	if opts.persist && cfg.State.Persist {
		a.params, err = params.Open(cfg.State.ResolvePath(),
			params.WithMaxHistory(cfg.State.MaxHistory),
			params.WithLogger(logger))
		if err != nil {
			logger.Warn("ignoring unreadable state file", "error", err.Error())
		}
	}
	if a.params == nil {
		a.params = params.New(params.WithMaxHistory(cfg.State.MaxHistory), params.WithLogger(logger))
	}

	a.fetcher, err = template.NewHTTPFetcher(template.Config{
		BaseURL:   cfg.Template.BaseURL,
		UserAgent: cfg.Template.UserAgent,
		Timeout:   cfg.Template.Timeout(),
		MaxSize:   cfg.Template.MaxSize(),
	}, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	notifier := notify.Multi{a.notes, notify.NewSnackbar(opts.notifyOut, opts.plain)}

	deps := playground.Deps{
		Bus:       a.bus,
		Registry:  a.registry,
		Loop:      a.loop,
		Editor:    a.buffer,
		Validator: validator.NewCommand(cfg.Validator.Command, cfg.Validator.Args, logger),
		Title:     a.title,
		CSP:       a.csp,
		Templates: a.fetcher,
		Emails:    email.NewFileLoader(logger),
		Notifier:  notifier,
		Params:    a.params,
		Logger:    logger,
	}
	if cfg.Formatter.Command != "" {
		deps.Formatter = formatter.NewCommand(cfg.Formatter.Command, cfg.Formatter.Args, logger)
	}
	if cfg.Preview.Path != "" {
		a.preview = preview.NewFile(cfg.Preview.Path, logger)
		deps.Preview = a.preview
	}
	if cfg.AutoImport.Enabled {
		deps.AutoImporter = autoimport.New(a.buffer, cfg.AutoImport.CDNBase, logger)
	}

	initial := cfg.Runtime.Initial
	if opts.runtime != "" {
		initial = opts.runtime
	}
	a.orch, err = playground.New(deps, playground.Options{
		Mode:            playground.Mode(cfg.Mode),
		InitialRuntime:  initial,
		ValidateTimeout: cfg.Validator.Timeout(),
		FormatTimeout:   cfg.Formatter.Timeout(),
		FetchTimeout:    cfg.Template.Timeout(),
		PreviewVisible:  cfg.Preview.Visible,
		ShareBaseURL:    cfg.Share.BaseURL,
	})
	if err != nil {
		a.release()
		return nil, err
	}

	a.bindings = action.New(a.orch,
		action.WithLogger(logger),
		action.WithNotifier(notifier))
	return a, nil
}

// start initializes the orchestrator and runs the loop until close.
func (a *app) start(ctx context.Context) error {
	a.traceID = a.bus.SubscribeAll(a.trace)
	if err := a.orch.Start(); err != nil {
		return err
	}
	a.bindings.Bind(a.bus)

	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan error, 1)
	go func() {
		a.done <- a.loop.Run(ctx)
	}()
	return nil
}

// settle waits until every queued task and in-flight collaborator call has
// finished.
func (a *app) settle() {
	a.loop.Settle()
}

// failures returns the user-facing messages shown so far.
func (a *app) failures() []string {
	return a.notes.Messages()
}

// close stops the loop and releases every resource.
func (a *app) close() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	a.bindings.Unbind()
	a.orch.Stop()
	if a.traceID != "" {
		a.bus.Unsubscribe(a.traceID)
	}
	a.release()
}

// trace logs every published event at debug level.
func (a *app) trace(e event.Event) {
	a.logger.Debug("event", "topic", e.EventType(), "revision", a.buffer.Revision())
}

func (a *app) release() {
	if a.fetcher != nil {
		_ = a.fetcher.Close()
	}
	_ = a.logger.Close()
}

// report captures the derived views after the loop settles.
func (a *app) report() report {
	r := report{
		Runtime: a.registry.Active(),
		Title:   a.title.Title(),
		Hashes:  a.csp.Hashes(),
		Source:  a.buffer.Source(),
	}
	if result, ok := a.buffer.ValidationResult(); ok {
		r.Result = &result
	}
	return r
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(cfg.Logging.ResolveDir(), logging.ParseLevel(cfg.Logging.Level), logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}

// readSource reads path, or stdin when path is "-".
func readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
