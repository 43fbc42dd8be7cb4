package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/playground/internal/validator"
)

// callTimeout bounds how long a test waits for a collaborator call.
const callTimeout = 2 * time.Second

// ValidationCall is one pending call to a GatedValidator.
type ValidationCall struct {
	Source  string
	Profile validator.Profile
	reply   chan validationReply
}

type validationReply struct {
	result validator.Result
	err    error
}

// Resolve completes the call with result.
func (c *ValidationCall) Resolve(result validator.Result) {
	c.reply <- validationReply{result: result}
}

// Reject completes the call with err.
func (c *ValidationCall) Reject(err error) {
	c.reply <- validationReply{err: err}
}

// GatedValidator blocks every Validate call until the test resolves it.
type GatedValidator struct {
	calls chan *ValidationCall
}

// NewGatedValidator creates a GatedValidator.
func NewGatedValidator() *GatedValidator {
	return &GatedValidator{calls: make(chan *ValidationCall, 64)}
}

// Validate implements the orchestrator's Validator.
func (v *GatedValidator) Validate(ctx context.Context, source string, profile validator.Profile) (validator.Result, error) {
	call := &ValidationCall{
		Source:  source,
		Profile: profile,
		reply:   make(chan validationReply, 1),
	}
	v.calls <- call
	select {
	case r := <-call.reply:
		return r.result, r.err
	case <-ctx.Done():
		return validator.Result{}, ctx.Err()
	}
}

// Next waits for the next Validate call.
func (v *GatedValidator) Next(t *testing.T) *ValidationCall {
	t.Helper()
	select {
	case call := <-v.calls:
		return call
	case <-time.After(callTimeout):
		t.Fatal("timed out waiting for a validation call")
		return nil
	}
}

// ExpectNone fails the test if a Validate call is pending.
func (v *GatedValidator) ExpectNone(t *testing.T) {
	t.Helper()
	select {
	case call := <-v.calls:
		t.Fatalf("unexpected validation call for %q", call.Source)
	default:
	}
}

// StubValidator answers every call immediately. Results are looked up by
// source; unknown sources pass.
type StubValidator struct {
	mu      sync.Mutex
	results map[string]validator.Result
	err     error
	calls   []ValidationCall
}

// NewStubValidator creates a StubValidator.
func NewStubValidator() *StubValidator {
	return &StubValidator{results: make(map[string]validator.Result)}
}

// SetResult registers the result returned for source.
func (v *StubValidator) SetResult(source string, result validator.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results[source] = result
}

// SetError makes every call fail with err.
func (v *StubValidator) SetError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
}

// Validate implements the orchestrator's Validator.
func (v *StubValidator) Validate(_ context.Context, source string, profile validator.Profile) (validator.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, ValidationCall{Source: source, Profile: profile})
	if v.err != nil {
		return validator.Result{}, v.err
	}
	if r, ok := v.results[source]; ok {
		return r, nil
	}
	return validator.Result{Status: validator.StatusPass}, nil
}

// Calls returns the calls received so far.
func (v *StubValidator) Calls() []ValidationCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ValidationCall, len(v.calls))
	copy(out, v.calls)
	return out
}

// FormatCall is one pending call to a GatedFormatter.
type FormatCall struct {
	Source string
	reply  chan formatReply
}

type formatReply struct {
	out string
	err error
}

// Resolve completes the call with the formatted output.
func (c *FormatCall) Resolve(out string) {
	c.reply <- formatReply{out: out}
}

// Reject completes the call with err.
func (c *FormatCall) Reject(err error) {
	c.reply <- formatReply{err: err}
}

// GatedFormatter blocks every Format call until the test resolves it.
type GatedFormatter struct {
	calls chan *FormatCall
}

// NewGatedFormatter creates a GatedFormatter.
func NewGatedFormatter() *GatedFormatter {
	return &GatedFormatter{calls: make(chan *FormatCall, 64)}
}

// Format implements the orchestrator's Formatter.
func (f *GatedFormatter) Format(ctx context.Context, source string) (string, error) {
	call := &FormatCall{Source: source, reply: make(chan formatReply, 1)}
	f.calls <- call
	select {
	case r := <-call.reply:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Next waits for the next Format call.
func (f *GatedFormatter) Next(t *testing.T) *FormatCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(callTimeout):
		t.Fatal("timed out waiting for a format call")
		return nil
	}
}

// FuncFormatter adapts a function to the orchestrator's Formatter.
type FuncFormatter func(source string) (string, error)

// Format implements the orchestrator's Formatter.
func (f FuncFormatter) Format(_ context.Context, source string) (string, error) {
	return f(source)
}

// FuncFetcher adapts a function to the orchestrator's TemplateFetcher.
type FuncFetcher func(url string) (string, error)

// Fetch implements the orchestrator's TemplateFetcher.
func (f FuncFetcher) Fetch(_ context.Context, url string) (string, error) {
	return f(url)
}

// FuncEmailLoader adapts a function to the orchestrator's EmailLoader.
type FuncEmailLoader func(path string) (string, error)

// Load implements the orchestrator's EmailLoader.
func (f FuncEmailLoader) Load(_ context.Context, path string) (string, error) {
	return f(path)
}

// RecordingPreview records every refresh.
type RecordingPreview struct {
	mu        sync.Mutex
	refreshes []string
	visible   bool
}

// Refresh implements the orchestrator's Preview.
func (p *RecordingPreview) Refresh(source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes = append(p.refreshes, source)
}

// SetVisible records the preview visibility.
func (p *RecordingPreview) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = visible
}

// Visible reports the last visibility set.
func (p *RecordingPreview) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Refreshes returns the sources refreshed so far.
func (p *RecordingPreview) Refreshes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.refreshes))
	copy(out, p.refreshes)
	return out
}
