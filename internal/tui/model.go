// Package tui is the terminal dashboard for a watched document: the active
// runtime, the validation status and findings, the derived title and CSP
// hashes, and the last notification.
package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/playground/internal/action"
	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/tui/styles"
	"github.com/Iron-Ham/playground/internal/util"
	"github.com/Iron-Ham/playground/internal/validator"
)

// Layout constants
const (
	DefaultWidth       = 100
	DefaultMaxFindings = 10
	// chromeHeight is the number of lines used by everything but findings.
	chromeHeight = 14
)

// Actions triggers named playground actions.
type Actions interface {
	Trigger(name, arg string) bool
}

// Config is the dashboard's starting state.
type Config struct {
	// Path is the watched file, shown in the header.
	Path           string
	Runtimes       []*runtime.Runtime
	ActiveID       string
	PreviewVisible bool
	Actions        Actions
}

// Messages

// EventMsg carries a bus event into the program.
type EventMsg struct {
	Event event.Event
}

// NoticeMsg shows a message in the notification line.
type NoticeMsg struct {
	Message  string
	Severity string
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	actions Actions

	path     string
	runtimes []*runtime.Runtime
	activeID string

	validating bool
	result     *validator.Result
	title      string
	hashes     []string
	origin     string

	previewVisible bool
	emailImport    bool
	loading        []string

	notice         string
	noticeSeverity string

	width    int
	height   int
	quitting bool
}

// New creates the dashboard model.
func New(cfg Config) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Primary))
	m := Model{
		keys:           defaultKeyMap(),
		help:           help.New(),
		spinner:        sp,
		actions:        cfg.Actions,
		path:           cfg.Path,
		runtimes:       cfg.Runtimes,
		activeID:       cfg.ActiveID,
		previewVisible: cfg.PreviewVisible,
		emailImport:    cfg.ActiveID == runtime.IDEmail,
		width:          DefaultWidth,
	}
	m.help.Width = m.width
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		busy := m.busy()
		m.applyEvent(msg.Event)
		if !busy && m.busy() {
			return m, m.spinner.Tick
		}
		return m, nil

	case NoticeMsg:
		m.notice = msg.Message
		m.noticeSeverity = msg.Severity
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Format):
		return m, m.trigger(action.FormatSource, "")
	case key.Matches(msg, m.keys.Next):
		return m, m.trigger(action.NextRuntime, "")
	case key.Matches(msg, m.keys.Preview):
		if m.previewVisible {
			return m, m.trigger(action.HidePreview, "")
		}
		return m, m.trigger(action.ShowPreview, "")
	case key.Matches(msg, m.keys.Share):
		return m, m.trigger(action.Share, "")
	}
	return m, nil
}

// trigger publishes off the update goroutine: bus handlers may send messages
// back into the program.
func (m Model) trigger(name, arg string) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	actions := m.actions
	return func() tea.Msg {
		if !actions.Trigger(name, arg) {
			return NoticeMsg{Message: "playground is not running", Severity: "warning"}
		}
		return nil
	}
}

func (m *Model) applyEvent(e event.Event) {
	switch ev := e.(type) {
	case event.RuntimeChangedEvent:
		m.activeID = ev.CurrentID
	case event.SourceLoadedEvent:
		m.origin = ev.Origin
	case event.ValidationRequestedEvent:
		m.validating = true
	case event.ValidationAppliedEvent:
		result := ev.Result
		m.result = &result
		m.validating = false
	case event.ValidationDiscardedEvent:
		// A newer request is still in flight.
	case event.TitleChangedEvent:
		m.title = ev.Title
	case event.CSPHashesEvent:
		m.hashes = ev.Hashes
	case event.AffordanceChangedEvent:
		switch ev.Name {
		case event.AffordancePreview:
			m.previewVisible = ev.Enabled
		case event.AffordanceImportEmail:
			m.emailImport = ev.Enabled
		}
	case event.NotificationEvent:
		m.notice = ev.Message
		m.noticeSeverity = ev.Severity
	case event.FormatCompletedEvent:
		switch {
		case ev.Applied:
			m.notice = "formatted"
			m.noticeSeverity = "info"
		case errors.IsStale(ev.Err):
			m.notice = "format skipped: source changed"
			m.noticeSeverity = "info"
		}
	case event.LoadingEvent:
		if ev.EventType() == event.TopicLoadingStarted {
			m.loading = append(m.loading, ev.Operation)
		} else if i := slices.Index(m.loading, ev.Operation); i >= 0 {
			m.loading = slices.Delete(m.loading, i, i+1)
		}
	}
}

func (m Model) busy() bool {
	return m.validating || len(m.loading) > 0
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	header := "AMP Playground"
	if m.path != "" {
		header += "  " + styles.Muted.Render(m.path)
	}
	b.WriteString(styles.Header.Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderRuntimes())
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.title != "" {
		b.WriteString(m.field("title", m.title))
	}
	if len(m.hashes) > 0 {
		b.WriteString(m.field("csp", util.Plural(len(m.hashes), "script hash", "script hashes")))
	}
	b.WriteString(m.field("preview", visibility(m.previewVisible)))
	if m.emailImport {
		b.WriteString(m.field("email", "import available"))
	}
	if m.origin != "" {
		b.WriteString(m.field("loaded", m.origin))
	}

	if findings := m.renderFindings(); findings != "" {
		b.WriteString("\n")
		b.WriteString(findings)
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(styles.Snackbar.Render(styles.SeverityStyle(m.noticeSeverity).Render(util.TruncateString(m.notice, m.width-2))))
		b.WriteString("\n")
	}

	b.WriteString(styles.HelpBar.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderRuntimes() string {
	tabs := make([]string, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		if rt.ID == m.activeID {
			tabs = append(tabs, styles.RuntimeActive.Render(rt.Name))
		} else {
			tabs = append(tabs, styles.RuntimeInactive.Render(rt.Name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderStatus() string {
	if ops := m.loading; len(ops) > 0 {
		return m.spinner.View() + " " + styles.Text.Render("loading "+ops[len(ops)-1])
	}
	if m.validating {
		return m.spinner.View() + " " + styles.StatusStyle("VALIDATING").Render("validating")
	}
	if m.result == nil {
		return styles.Muted.Render(styles.StatusIcon("") + " not validated")
	}
	status := string(m.result.Status)
	return fmt.Sprintf("%s %s",
		styles.StatusStyle(status).Render(styles.StatusIcon(status)+" "+status),
		styles.Muted.Render(fmt.Sprintf("(%s, %s)",
			util.Plural(m.result.ErrorCount(), "error", "errors"),
			util.Plural(m.result.WarningCount(), "warning", "warnings"))),
	)
}

func (m Model) renderFindings() string {
	if m.result == nil || len(m.result.Errors) == 0 {
		return ""
	}
	limit := m.maxFindings()
	var b strings.Builder
	for i, f := range m.result.Errors {
		if i == limit {
			b.WriteString(styles.Muted.Render(fmt.Sprintf("  … %d more", len(m.result.Errors)-limit)))
			b.WriteString("\n")
			break
		}
		line := fmt.Sprintf("  %s %s %s %s",
			styles.FindingLocation.Render(fmt.Sprintf("%d:%d", f.Line, f.Col)),
			styles.StatusStyle(string(f.Severity)).Render(styles.StatusIcon(string(f.Severity))),
			f.Message,
			styles.FindingCode.Render(f.Code),
		)
		b.WriteString(util.TruncateANSI(line, m.width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) maxFindings() int {
	if m.height == 0 {
		return DefaultMaxFindings
	}
	return max(m.height-chromeHeight, 1)
}

func (m Model) field(label, value string) string {
	return styles.Muted.Render(label+":") + " " + util.TruncateString(value, m.width-len(label)-2) + "\n"
}

func visibility(visible bool) string {
	if visible {
		return "shown"
	}
	return "hidden"
}
