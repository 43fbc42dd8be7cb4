// Package errors provides centralized error definitions and error handling utilities
// for the playground. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors describe how a failure is handled by the orchestrator:
//   - UserVisibleError: a failure the user caused or can fix (bad template URL,
//     malformed email file, formatter rejection). Surfaced as a transient
//     notification; the source is left unchanged.
//   - CollaboratorUnavailableError: a collaborator or resource could not be
//     reached or resolved (unknown runtime id, missing validator binary).
//     Logged; the operation is aborted without mutating state.
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or configuration
//   - TimeoutError: operation timed out
//
// ErrStaleResult is not a failure. It marks an asynchronous result that no
// longer corresponds to the current source and is discarded silently.
//
// # Usage
//
//	err := errors.NewUserVisibleError("could not load template", cause).WithAction("template").WithTarget(url)
//	if errors.IsUserFacing(err) { notifier.Show(err.Error()) }
//
//	var unavailable *errors.CollaboratorUnavailableError
//	if errors.As(err, &unavailable) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Runtime-related sentinel errors
var (
	// ErrUnknownRuntime indicates that a runtime id is not registered.
	ErrUnknownRuntime = New("unknown runtime")
	// ErrNoRuntimes indicates that a registry was initialized without runtimes.
	ErrNoRuntimes = New("no runtimes registered")
	// ErrDuplicateRuntime indicates that two runtimes share an id.
	ErrDuplicateRuntime = New("duplicate runtime id")
	// ErrRegistryNotInitialized indicates that the registry has no active runtime yet.
	ErrRegistryNotInitialized = New("runtime registry not initialized")
)

// Collaborator-related sentinel errors
var (
	// ErrValidatorUnavailable indicates that the validation engine cannot be run.
	ErrValidatorUnavailable = New("validator unavailable")
	// ErrFormatterUnavailable indicates that the formatter cannot be run.
	ErrFormatterUnavailable = New("formatter unavailable")
	// ErrFormatFailed indicates that the formatter rejected the source.
	ErrFormatFailed = New("format failed")
	// ErrTemplateFetch indicates that a template could not be fetched.
	ErrTemplateFetch = New("template fetch failed")
	// ErrEmailMalformed indicates that an email file could not be parsed.
	ErrEmailMalformed = New("malformed email")
	// ErrNoAMPPart indicates that an email contains no AMP part.
	ErrNoAMPPart = New("email has no AMP part")
	// ErrActionDisabled indicates that an action's affordance is currently disabled.
	ErrActionDisabled = New("action disabled")
)

// General sentinel errors
var (
	// ErrStaleResult marks an asynchronous result computed for a superseded snapshot.
	ErrStaleResult = New("stale result")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrLoopStopped indicates that work was posted to a stopped loop.
	ErrLoopStopped = New("loop stopped")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// PlaygroundError is the base interface for all playground errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type PlaygroundError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// UserVisibleError represents a failure that is reported to the user as a
// transient notification. It never aborts the process and the orchestrator
// leaves the source unchanged when it occurs.
//
// Example:
//
//	err := errors.NewUserVisibleError("could not load template", errors.ErrTemplateFetch)
//	err = err.WithAction("template").WithTarget("https://example.com/t.html")
//	fmt.Println(err) // "template [target=https://example.com/t.html]: could not load template: template fetch failed"
type UserVisibleError struct {
	baseError
	Action string
	Target string
}

// NewUserVisibleError creates a new UserVisibleError.
func NewUserVisibleError(message string, cause error) *UserVisibleError {
	return &UserVisibleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithAction names the user action that failed (e.g. "format", "template").
func (e *UserVisibleError) WithAction(action string) *UserVisibleError {
	e.Action = action
	return e
}

// WithTarget adds the URL or path the action operated on.
func (e *UserVisibleError) WithTarget(target string) *UserVisibleError {
	e.Target = target
	return e
}

// WithSeverity sets the error severity.
func (e *UserVisibleError) WithSeverity(s Severity) *UserVisibleError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *UserVisibleError) Error() string {
	prefix := e.Action
	if prefix == "" {
		prefix = "error"
	}
	if e.Target != "" {
		prefix = fmt.Sprintf("%s [target=%s]", prefix, e.Target)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *UserVisibleError) Is(target error) bool {
	if _, ok := target.(*UserVisibleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CollaboratorUnavailableError represents a collaborator or resource that the
// orchestrator could not reach or resolve. The failed operation is aborted
// and no state is mutated.
//
// Example:
//
//	err := errors.NewCollaboratorUnavailableError("runtime registry", errors.ErrUnknownRuntime).WithID("amp4foo")
//	fmt.Println(err) // "runtime registry unavailable [id=amp4foo]: unknown runtime"
type CollaboratorUnavailableError struct {
	baseError
	Collaborator string
	ID           string
}

// NewCollaboratorUnavailableError creates a new CollaboratorUnavailableError.
func NewCollaboratorUnavailableError(collaborator string, cause error) *CollaboratorUnavailableError {
	return &CollaboratorUnavailableError{
		baseError: baseError{
			message:    collaborator + " unavailable",
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Collaborator: collaborator,
	}
}

// WithID adds the identifier that could not be resolved.
func (e *CollaboratorUnavailableError) WithID(id string) *CollaboratorUnavailableError {
	e.ID = id
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *CollaboratorUnavailableError) WithRetryable(r bool) *CollaboratorUnavailableError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *CollaboratorUnavailableError) Error() string {
	var parts []string
	if e.ID != "" {
		parts = append(parts, fmt.Sprintf("id=%s", e.ID))
	}

	prefix := e.message
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", e.message, strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *CollaboratorUnavailableError) Is(target error) bool {
	if _, ok := target.(*CollaboratorUnavailableError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("runtime", "amp4foo")
//	fmt.Println(err) // "runtime 'amp4foo' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("runtime id cannot be empty")
//	err = err.WithField("runtimes[0].id").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("validate", 10*time.Second)
//	fmt.Println(err) // "timeout error: validate (timeout: 10s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr PlaygroundError
	if As(err, &pgErr) {
		return pgErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    notifier.Show(err.Error())
//	} else {
//	    notifier.Show("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var pgErr PlaygroundError
	if As(err, &pgErr) {
		return pgErr.IsUserFacing()
	}

	return false
}

// IsStale reports whether err marks a superseded asynchronous result.
func IsStale(err error) bool {
	return Is(err, ErrStaleResult)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement PlaygroundError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var pgErr PlaygroundError
	if As(err, &pgErr) {
		return pgErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to read template")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
