package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/playground/internal/config"
	"github.com/Iron-Ham/playground/internal/editor"
	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/tui"
	"github.com/Iron-Ham/playground/internal/tui/styles"
	"github.com/Iron-Ham/playground/internal/util"
	"github.com/Iron-Ham/playground/internal/validator"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Revalidate a document every time it is saved",
	Long: `Watch a document and keep its validation result, title and csp hashes
current while you edit it in your own editor.

On a terminal a dashboard shows the active runtime, the findings and the
last notification, with keys to format the document, switch runtime,
toggle the preview and copy a share link. With --plain, or when stdout is
not a terminal, every update is printed as a line instead.

The preview file (preview.path) is rewritten after every change.

Examples:
  # Watch with the dashboard
  playground watch index.html

  # Line output, e.g. in a CI log or editor terminal
  playground watch --plain index.html`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchRuntime string
	watchPlain   bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchRuntime, "runtime", "r", "", "Runtime id (default: detected from the document)")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print updates as lines instead of the dashboard")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if path == "-" {
		return errors.NewValidationError("watch needs a file, not stdin").WithField("file")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	source, err := readSource(path)
	if err != nil {
		return err
	}

	plain := watchPlain || !isTerminal(os.Stdout)
	a, err := newApp(cfg, appOptions{
		source:  source,
		runtime: watchRuntime,
		plain:   plain,
		persist: true,
	})
	if err != nil {
		return err
	}
	defer a.close()

	// Subscribers go first: the initial validation is published as soon as
	// the loop runs.
	var dashboard *tui.App
	if plain {
		p := newLinePrinter(cmd.OutOrStdout(), a.buffer)
		p.subscribe(a.bus)
	} else {
		runtimes := make([]*runtime.Runtime, len(a.runtimes))
		for i := range a.runtimes {
			runtimes[i] = &a.runtimes[i]
		}
		// The active runtime arrives with the first RuntimeChangedEvent.
		dashboard = tui.NewApp(a.bus, tui.New(tui.Config{
			Path:           path,
			Runtimes:       runtimes,
			PreviewVisible: cfg.Preview.Visible,
			Actions:        a.bindings,
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		return err
	}
	if watchRuntime == "" {
		a.orch.LoadDocument(source, path)
	}

	watcher, err := editor.NewWatcher(path, func(source string) { a.orch.ApplyEdit(source) }, cfg.Watch.Debounce(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	watcher.SetErrorCallback(func(err error) {
		a.bus.Publish(event.NewNotificationEvent("could not read "+path+": "+err.Error(), errors.SeverityWarning.String()))
	})
	watcher.Start()
	defer watcher.Stop()

	if dashboard != nil {
		return dashboard.Run()
	}
	<-ctx.Done()
	return nil
}

const formatSkipped = "format skipped: source changed"

// linePrinter prints dashboard updates as plain lines.
type linePrinter struct {
	mu     sync.Mutex
	w      io.Writer
	source interface{ Source() string }
}

func newLinePrinter(w io.Writer, source interface{ Source() string }) *linePrinter {
	return &linePrinter{w: w, source: source}
}

func (p *linePrinter) subscribe(bus *event.Bus) {
	bus.SubscribeMany([]string{
		event.TopicRuntimeChanged,
		event.TopicValidationApplied,
		event.TopicTitleChanged,
		event.TopicFormatCompleted,
		event.TopicTemplateLoaded,
		event.TopicEmailImported,
		event.TopicNotification,
	}, p.handle)
}

func (p *linePrinter) handle(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev := e.(type) {
	case event.RuntimeChangedEvent:
		if ev.Changed() {
			fmt.Fprintf(p.w, "runtime: %s (%s)\n", ev.CurrentName, ev.CurrentID)
		}
	case event.ValidationAppliedEvent:
		p.printResult(ev.Result)
	case event.TitleChangedEvent:
		fmt.Fprintf(p.w, "title: %s\n", ev.Title)
	case event.FormatCompletedEvent:
		if ev.Applied {
			fmt.Fprintln(p.w, "formatted")
		} else if errors.IsStale(ev.Err) {
			fmt.Fprintln(p.w, formatSkipped)
		}
	case event.TemplateLoadedEvent:
		fmt.Fprintf(p.w, "loaded template %s\n", ev.URL)
	case event.EmailImportedEvent:
		fmt.Fprintf(p.w, "imported %s\n", ev.Path)
	case event.NotificationEvent:
		fmt.Fprintf(p.w, "%s %s\n", styles.StatusIcon("WARNING"), ev.Message)
	}
}

func (p *linePrinter) printResult(result validator.Result) {
	fmt.Fprintf(p.w, "%s %s (%s, %s)\n",
		styles.StatusIcon(string(result.Status)),
		result.Status,
		util.Plural(result.ErrorCount(), "error", "errors"),
		util.Plural(result.WarningCount(), "warning", "warnings"),
	)
	source := p.source.Source()
	for _, finding := range result.Errors {
		writeFinding(p.w, finding, source, true)
	}
}
