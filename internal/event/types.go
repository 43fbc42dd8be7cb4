// Package event defines event types for decoupling playground components.
// These events let the editing surface, the runtime registry, the
// orchestrator and the host UI communicate without direct dependencies.
package event

import (
	"time"

	"github.com/Iron-Ham/playground/internal/validator"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns the topic of this event.
	// Convention: "category.action" (e.g., "source.changed", "runtime.changed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Topics. Every event type below publishes on exactly one of these.
const (
	TopicSourceChanged       = "source.changed"
	TopicSourceLoaded        = "source.loaded"
	TopicValidationRequested = "validation.requested"
	TopicValidationCompleted = "validation.completed"
	TopicValidationApplied   = "validation.applied"
	TopicValidationDiscarded = "validation.discarded"
	TopicRuntimeChanged      = "runtime.changed"
	TopicPreviewRefreshed    = "preview.refreshed"
	TopicTitleChanged        = "title.changed"
	TopicCSPUpdated          = "csp.updated"
	TopicFormatCompleted     = "format.completed"
	TopicTemplateLoaded      = "template.loaded"
	TopicEmailImported       = "email.imported"
	TopicAffordanceChanged   = "affordance.changed"
	TopicNotification        = "notification.shown"
	TopicActionTriggered     = "action.triggered"
	TopicLoadingStarted      = "loading.started"
	TopicLoadingFinished     = "loading.finished"
	topicWildcard            = "*"
)

// Topics returns every topic in the dispatch table.
func Topics() []string {
	return []string{
		TopicSourceChanged,
		TopicSourceLoaded,
		TopicValidationRequested,
		TopicValidationCompleted,
		TopicValidationApplied,
		TopicValidationDiscarded,
		TopicRuntimeChanged,
		TopicPreviewRefreshed,
		TopicTitleChanged,
		TopicCSPUpdated,
		TopicFormatCompleted,
		TopicTemplateLoaded,
		TopicEmailImported,
		TopicAffordanceChanged,
		TopicNotification,
		TopicActionTriggered,
		TopicLoadingStarted,
		TopicLoadingFinished,
	}
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Source Events
// -----------------------------------------------------------------------------

// SourceChangedEvent is emitted whenever the editing surface's buffer mutates.
type SourceChangedEvent struct {
	baseEvent
	Generation uint64 // Editor change counter at the time of the change
}

// NewSourceChangedEvent creates a SourceChangedEvent.
func NewSourceChangedEvent(generation uint64) SourceChangedEvent {
	return SourceChangedEvent{
		baseEvent:  newBaseEvent(TopicSourceChanged),
		Generation: generation,
	}
}

// SourceLoadedEvent is emitted when a brand-new document replaces the source.
type SourceLoadedEvent struct {
	baseEvent
	Generation uint64
	Origin     string // File path or URL the document came from
}

// NewSourceLoadedEvent creates a SourceLoadedEvent.
func NewSourceLoadedEvent(generation uint64, origin string) SourceLoadedEvent {
	return SourceLoadedEvent{
		baseEvent:  newBaseEvent(TopicSourceLoaded),
		Generation: generation,
		Origin:     origin,
	}
}

// -----------------------------------------------------------------------------
// Validation Events
// -----------------------------------------------------------------------------

// ValidationRequestedEvent is emitted when a snapshot is dispatched to the validator.
type ValidationRequestedEvent struct {
	baseEvent
	Generation uint64
	RuntimeID  string
}

// NewValidationRequestedEvent creates a ValidationRequestedEvent.
func NewValidationRequestedEvent(generation uint64, runtimeID string) ValidationRequestedEvent {
	return ValidationRequestedEvent{
		baseEvent:  newBaseEvent(TopicValidationRequested),
		Generation: generation,
		RuntimeID:  runtimeID,
	}
}

// ValidationCompletedEvent carries a validator outcome together with the
// snapshot it was computed from. Err is set when the validator failed.
type ValidationCompletedEvent struct {
	baseEvent
	Generation uint64
	Source     string
	RuntimeID  string
	Result     validator.Result
	Err        error
}

// NewValidationCompletedEvent creates a ValidationCompletedEvent.
func NewValidationCompletedEvent(generation uint64, source, runtimeID string, result validator.Result, err error) ValidationCompletedEvent {
	return ValidationCompletedEvent{
		baseEvent:  newBaseEvent(TopicValidationCompleted),
		Generation: generation,
		Source:     source,
		RuntimeID:  runtimeID,
		Result:     result,
		Err:        err,
	}
}

// ValidationAppliedEvent is emitted after a current result reached the editor.
type ValidationAppliedEvent struct {
	baseEvent
	Generation uint64
	RuntimeID  string
	Result     validator.Result
}

// NewValidationAppliedEvent creates a ValidationAppliedEvent.
func NewValidationAppliedEvent(generation uint64, runtimeID string, result validator.Result) ValidationAppliedEvent {
	return ValidationAppliedEvent{
		baseEvent:  newBaseEvent(TopicValidationApplied),
		Generation: generation,
		RuntimeID:  runtimeID,
		Result:     result,
	}
}

// ValidationDiscardedEvent is emitted when a result for a superseded snapshot arrives.
type ValidationDiscardedEvent struct {
	baseEvent
	Generation uint64 // Generation of the discarded result
	Current    uint64 // Latest requested generation
}

// NewValidationDiscardedEvent creates a ValidationDiscardedEvent.
func NewValidationDiscardedEvent(generation, current uint64) ValidationDiscardedEvent {
	return ValidationDiscardedEvent{
		baseEvent:  newBaseEvent(TopicValidationDiscarded),
		Generation: generation,
		Current:    current,
	}
}

// -----------------------------------------------------------------------------
// Runtime Events
// -----------------------------------------------------------------------------

// RuntimeChangedEvent is emitted by the runtime registry whenever the active
// runtime is (re)assigned. PreviousID is empty for the initial assignment and
// equals CurrentID when the same runtime is set again.
type RuntimeChangedEvent struct {
	baseEvent
	PreviousID  string
	CurrentID   string
	CurrentName string
}

// NewRuntimeChangedEvent creates a RuntimeChangedEvent.
func NewRuntimeChangedEvent(previousID, currentID, currentName string) RuntimeChangedEvent {
	return RuntimeChangedEvent{
		baseEvent:   newBaseEvent(TopicRuntimeChanged),
		PreviousID:  previousID,
		CurrentID:   currentID,
		CurrentName: currentName,
	}
}

// Changed reports whether the active runtime actually moved.
func (e RuntimeChangedEvent) Changed() bool {
	return e.PreviousID != e.CurrentID
}

// -----------------------------------------------------------------------------
// Derived View Events
// -----------------------------------------------------------------------------

// PreviewRefreshedEvent is emitted after the preview was asked to refresh.
type PreviewRefreshedEvent struct {
	baseEvent
	Generation uint64
}

// NewPreviewRefreshedEvent creates a PreviewRefreshedEvent.
func NewPreviewRefreshedEvent(generation uint64) PreviewRefreshedEvent {
	return PreviewRefreshedEvent{
		baseEvent:  newBaseEvent(TopicPreviewRefreshed),
		Generation: generation,
	}
}

// TitleChangedEvent is emitted when the document title was recomputed.
type TitleChangedEvent struct {
	baseEvent
	Title string
}

// NewTitleChangedEvent creates a TitleChangedEvent.
func NewTitleChangedEvent(title string) TitleChangedEvent {
	return TitleChangedEvent{
		baseEvent: newBaseEvent(TopicTitleChanged),
		Title:     title,
	}
}

// CSPHashesEvent is emitted when the content-security-policy hashes were recomputed.
type CSPHashesEvent struct {
	baseEvent
	Hashes []string
}

// NewCSPHashesEvent creates a CSPHashesEvent.
func NewCSPHashesEvent(hashes []string) CSPHashesEvent {
	return CSPHashesEvent{
		baseEvent: newBaseEvent(TopicCSPUpdated),
		Hashes:    hashes,
	}
}

// -----------------------------------------------------------------------------
// Action Outcome Events
// -----------------------------------------------------------------------------

// FormatCompletedEvent is emitted when a format request finished.
// Applied is false when the result was stale or the formatter failed.
type FormatCompletedEvent struct {
	baseEvent
	Generation uint64
	Applied    bool
	Err        error
}

// NewFormatCompletedEvent creates a FormatCompletedEvent.
func NewFormatCompletedEvent(generation uint64, applied bool, err error) FormatCompletedEvent {
	return FormatCompletedEvent{
		baseEvent:  newBaseEvent(TopicFormatCompleted),
		Generation: generation,
		Applied:    applied,
		Err:        err,
	}
}

// TemplateLoadedEvent is emitted when a fetched template replaced the source.
type TemplateLoadedEvent struct {
	baseEvent
	URL string
}

// NewTemplateLoadedEvent creates a TemplateLoadedEvent.
func NewTemplateLoadedEvent(url string) TemplateLoadedEvent {
	return TemplateLoadedEvent{
		baseEvent: newBaseEvent(TopicTemplateLoaded),
		URL:       url,
	}
}

// EmailImportedEvent is emitted when an email's AMP part replaced the source.
type EmailImportedEvent struct {
	baseEvent
	Path string
}

// NewEmailImportedEvent creates an EmailImportedEvent.
func NewEmailImportedEvent(path string) EmailImportedEvent {
	return EmailImportedEvent{
		baseEvent: newBaseEvent(TopicEmailImported),
		Path:      path,
	}
}

// -----------------------------------------------------------------------------
// UI Events
// -----------------------------------------------------------------------------

// Affordance names.
const (
	AffordanceImportEmail = "import-email"
	AffordancePreview     = "preview"
	AffordanceHidePreview = "hide-preview"
)

// AffordanceChangedEvent is emitted when a runtime-conditional or
// visibility-controlled UI affordance changes state.
type AffordanceChangedEvent struct {
	baseEvent
	Name    string
	Enabled bool
}

// NewAffordanceChangedEvent creates an AffordanceChangedEvent.
func NewAffordanceChangedEvent(name string, enabled bool) AffordanceChangedEvent {
	return AffordanceChangedEvent{
		baseEvent: newBaseEvent(TopicAffordanceChanged),
		Name:      name,
		Enabled:   enabled,
	}
}

// NotificationEvent is emitted when a message is surfaced to the user.
type NotificationEvent struct {
	baseEvent
	Message  string
	Severity string
}

// NewNotificationEvent creates a NotificationEvent.
func NewNotificationEvent(message, severity string) NotificationEvent {
	return NotificationEvent{
		baseEvent: newBaseEvent(TopicNotification),
		Message:   message,
		Severity:  severity,
	}
}

// ActionTriggeredEvent is emitted by the host when a button or key is used.
type ActionTriggeredEvent struct {
	baseEvent
	Action string // Action name, e.g. "format-source"
	Arg    string // Optional argument (runtime id, URL, file path)
}

// NewActionTriggeredEvent creates an ActionTriggeredEvent.
func NewActionTriggeredEvent(action, arg string) ActionTriggeredEvent {
	return ActionTriggeredEvent{
		baseEvent: newBaseEvent(TopicActionTriggered),
		Action:    action,
		Arg:       arg,
	}
}

// LoadingEvent is emitted when an operation that blocks the editing surface
// starts or finishes.
type LoadingEvent struct {
	baseEvent
	Operation string
}

// NewLoadingStartedEvent creates a LoadingEvent on the loading.started topic.
func NewLoadingStartedEvent(operation string) LoadingEvent {
	return LoadingEvent{
		baseEvent: newBaseEvent(TopicLoadingStarted),
		Operation: operation,
	}
}

// NewLoadingFinishedEvent creates a LoadingEvent on the loading.finished topic.
func NewLoadingFinishedEvent(operation string) LoadingEvent {
	return LoadingEvent{
		baseEvent: newBaseEvent(TopicLoadingFinished),
		Operation: operation,
	}
}
