// Package action maps the playground's named user actions (toolbar buttons,
// menu items, keyboard shortcuts) onto orchestrator operations.
//
// Hosts trigger an action by publishing an ActionTriggeredEvent; Bindings
// looks the name up in its dispatch table and runs the bound operation.
package action

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/logging"
)

// Action names.
const (
	FormatSource     = "format-source"
	MenuFormatSource = "menu-format-source"
	LoadTemplate     = "load-template"
	ImportEmail      = "import-email"
	Share            = "share"
	ShowPreview      = "show-preview"
	HidePreview      = "hide-preview"
	SelectRuntime    = "select-runtime"
	NextRuntime      = "next-runtime"
)

// Operations is the part of the orchestrator the bindings drive.
type Operations interface {
	Format() bool
	LoadTemplate(url string) bool
	ImportEmail(path string) bool
	ShareURL() (string, error)
	ShowPreview() bool
	HidePreview() bool
	SelectRuntime(id string) error
	NextRuntime() error
	AffordanceEnabled(name string) bool
}

// Notifier surfaces the result of actions that produce something to show,
// such as a share link.
type Notifier interface {
	Show(message string)
}

// actionFunc runs one action with its argument.
type actionFunc func(b *Bindings, arg string) error

// Bindings is the dispatch table from action names to operations.
type Bindings struct {
	ops      Operations
	notifier Notifier
	logger   *logging.Logger
	actions  map[string]actionFunc

	bus          *event.Bus
	subscription string
}

// Option configures Bindings.
type Option func(*Bindings)

// WithLogger sets the logger. Unknown or failed actions are logged.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bindings) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithNotifier sets where share links are shown. Bound bindings also
// publish the link as a NotificationEvent.
func WithNotifier(n Notifier) Option {
	return func(b *Bindings) {
		b.notifier = n
	}
}

// New creates Bindings for ops with every action registered.
func New(ops Operations, opts ...Option) *Bindings {
	b := &Bindings{
		ops:     ops,
		logger:  logging.NopLogger(),
		actions: make(map[string]actionFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("actions")
	b.registerActions()
	return b
}

func (b *Bindings) registerActions() {
	// Formatting is reachable from the toolbar and from the menu.
	b.actions[FormatSource] = actFormat
	b.actions[MenuFormatSource] = actFormat

	// Documents
	b.actions[LoadTemplate] = actLoadTemplate
	b.actions[ImportEmail] = actImportEmail
	b.actions[Share] = actShare

	// Preview
	b.actions[ShowPreview] = actShowPreview
	b.actions[HidePreview] = actHidePreview

	// Runtimes
	b.actions[SelectRuntime] = actSelectRuntime
	b.actions[NextRuntime] = actNextRuntime
}

// Names returns the registered action names, sorted.
func (b *Bindings) Names() []string {
	names := make([]string, 0, len(b.actions))
	for name := range b.actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch runs the action registered under name.
func (b *Bindings) Dispatch(name, arg string) error {
	name = strings.TrimSpace(name)
	fn, ok := b.actions[name]
	if !ok {
		return errors.NewNotFoundError("action", name)
	}
	return fn(b, arg)
}

// Bind subscribes to action.triggered on bus. Calling Bind again moves the
// subscription to the new bus.
func (b *Bindings) Bind(bus *event.Bus) {
	b.Unbind()
	b.bus = bus
	b.subscription = bus.Subscribe(event.TopicActionTriggered, b.handle)
}

// Unbind removes the bus subscription, if any.
func (b *Bindings) Unbind() {
	if b.bus != nil {
		b.bus.Unsubscribe(b.subscription)
	}
	b.bus = nil
	b.subscription = ""
}

// Trigger publishes an ActionTriggeredEvent on the bound bus. It reports
// false when Bindings is not bound.
func (b *Bindings) Trigger(name, arg string) bool {
	if b.bus == nil {
		return false
	}
	b.bus.Publish(event.NewActionTriggeredEvent(name, arg))
	return true
}

func (b *Bindings) handle(e event.Event) {
	ev, ok := e.(event.ActionTriggeredEvent)
	if !ok {
		return
	}
	err := b.Dispatch(ev.Action, ev.Arg)
	var unknown *errors.NotFoundError
	switch {
	case err == nil:
		b.logger.Debug("action dispatched", "action", ev.Action)
	case errors.As(err, &unknown):
		b.logger.Warn("unknown action ignored", "action", ev.Action)
	default:
		b.logger.Warn("action failed", "action", ev.Action, "error", err.Error())
	}
}

func posted(ok bool) error {
	if !ok {
		return errors.ErrLoopStopped
	}
	return nil
}

func requireArg(name, arg string) error {
	if strings.TrimSpace(arg) == "" {
		return errors.NewValidationError(fmt.Sprintf("%s needs an argument", name)).WithField("arg")
	}
	return nil
}

// Action implementations

func actFormat(b *Bindings, _ string) error {
	return posted(b.ops.Format())
}

func actLoadTemplate(b *Bindings, arg string) error {
	if err := requireArg(LoadTemplate, arg); err != nil {
		return err
	}
	return posted(b.ops.LoadTemplate(strings.TrimSpace(arg)))
}

func actImportEmail(b *Bindings, arg string) error {
	if !b.ops.AffordanceEnabled(event.AffordanceImportEmail) {
		return errors.Wrapf(errors.ErrActionDisabled, "action %q", ImportEmail)
	}
	if err := requireArg(ImportEmail, arg); err != nil {
		return err
	}
	return posted(b.ops.ImportEmail(arg))
}

func actShare(b *Bindings, _ string) error {
	link, err := b.ops.ShareURL()
	if err != nil {
		return err
	}
	if b.notifier != nil {
		b.notifier.Show(link)
	}
	if b.bus != nil {
		b.bus.Publish(event.NewNotificationEvent(link, errors.SeverityInfo.String()))
	}
	return nil
}

func actShowPreview(b *Bindings, _ string) error {
	return posted(b.ops.ShowPreview())
}

func actHidePreview(b *Bindings, _ string) error {
	return posted(b.ops.HidePreview())
}

func actSelectRuntime(b *Bindings, arg string) error {
	if err := requireArg(SelectRuntime, arg); err != nil {
		return err
	}
	return b.ops.SelectRuntime(strings.TrimSpace(arg))
}

func actNextRuntime(b *Bindings, _ string) error {
	return b.ops.NextRuntime()
}
