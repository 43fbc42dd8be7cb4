package playground

import (
	"context"
	"fmt"
	"slices"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/validator"
)

// ApplyEdit replaces the source from outside the editor, e.g. with a file
// saved to disk. The write runs as a loop task so it never lands between a
// check of the current source and the write that depends on it.
func (o *Orchestrator) ApplyEdit(source string) bool {
	return o.loop.Post(func() { o.editor.SetSource(source) })
}

// validateAttempts bounds validator calls per request when failures are
// retryable.
const validateAttempts = 2

// onEditorChange is the editor's change hook. It may run on any goroutine.
func (o *Orchestrator) onEditorChange() {
	o.loop.Post(func() {
		o.edits++
		o.bus.Publish(event.NewSourceChangedEvent(o.edits))
	})
}

func (o *Orchestrator) handleSourceChanged(event.Event) {
	source := o.editor.Source()
	if o.derived && source == o.derivedSource {
		o.logger.Debug("derived views already current", "edits", o.edits)
		return
	}
	o.runPipeline(source)
}

// runPipeline refreshes the preview, the title, the validation result and,
// outside validator mode, the csp hashes, in that order. Title and hashes are
// published only when they differ from the last published value.
func (o *Orchestrator) runPipeline(source string) {
	o.derivedSource = source
	o.derived = true

	o.preview.Refresh(source)
	o.bus.Publish(event.NewPreviewRefreshedEvent(o.edits))

	if title := o.title.Update(source); !o.titleSet || title != o.lastTitle {
		o.lastTitle, o.titleSet = title, true
		o.bus.Publish(event.NewTitleChangedEvent(title))
	}

	o.requestValidation(source)

	if o.opts.Mode != ModeValidator {
		if hashes := o.csp.Update(source); !o.hashesSet || !slices.Equal(hashes, o.lastHashes) {
			o.lastHashes, o.hashesSet = hashes, true
			o.bus.Publish(event.NewCSPHashesEvent(hashes))
		}
	}
}

// requestValidation dispatches source under the active runtime's profile.
// A request identical to the latest one is not repeated.
func (o *Orchestrator) requestValidation(source string) {
	active := o.registry.Active()
	if active == nil {
		return
	}
	if last := o.lastRequest; last != nil && last.source == source && last.runtimeID == active.ID {
		o.logger.Debug("validation already requested", "generation", last.generation)
		return
	}

	o.validateGen++
	req := validationRequest{
		generation: o.validateGen,
		source:     source,
		runtimeID:  active.ID,
	}
	o.lastRequest = &req
	o.validationsRequested.Add(1)
	o.bus.Publish(event.NewValidationRequestedEvent(req.generation, req.runtimeID))

	profile := active.Profile
	o.loop.Go(func(ctx context.Context) func() {
		var (
			result validator.Result
			err    error
		)
		for attempt := 1; ; attempt++ {
			result, err = o.validate(ctx, req.source, profile)
			if err == nil || attempt == validateAttempts || !errors.IsRetryable(err) || ctx.Err() != nil {
				break
			}
			o.logger.Warn("retrying validation", "generation", req.generation, "error", err.Error())
		}

		return func() {
			o.bus.Publish(event.NewValidationCompletedEvent(req.generation, req.source, req.runtimeID, result, err))
		}
	})
}

// validate runs one validator call with its own timeout.
func (o *Orchestrator) validate(ctx context.Context, source string, profile validator.Profile) (validator.Result, error) {
	timeout := o.opts.ValidateTimeout
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	var result validator.Result
	err := safeCall("validator", func() error {
		var err error
		result, err = o.validator.Validate(ctx, source, profile)
		return err
	})
	return result, timeoutError(ctx, "validate", timeout, err)
}

// isCurrentValidation applies the staleness-rejection rule: a result counts
// only for the latest request, while its source is still the editor's source
// and its runtime still the active one.
func (o *Orchestrator) isCurrentValidation(ev event.ValidationCompletedEvent) bool {
	if ev.Generation != o.validateGen {
		return false
	}
	if ev.Source != o.editor.Source() {
		return false
	}
	active := o.registry.Active()
	return active != nil && active.ID == ev.RuntimeID
}

func (o *Orchestrator) handleValidationCompleted(e event.Event) {
	ev, ok := e.(event.ValidationCompletedEvent)
	if !ok {
		return
	}

	if !o.isCurrentValidation(ev) {
		o.validationsDiscarded.Add(1)
		o.logger.Debug("discarding validation result",
			"generation", ev.Generation,
			"current", o.validateGen,
			"reason", errors.ErrStaleResult.Error(),
		)
		o.bus.Publish(event.NewValidationDiscardedEvent(ev.Generation, o.validateGen))
		return
	}

	if ev.Err != nil {
		// Allow the same snapshot to be requested again.
		o.lastRequest = nil
		o.validationsFailed.Add(1)
		o.logger.Error("validation failed", "generation", ev.Generation, "error", ev.Err.Error())
		o.notify(fmt.Sprintf("validation failed: %v", ev.Err), errors.SeverityWarning)
		return
	}

	o.validationsApplied.Add(1)
	o.editor.SetValidationResult(ev.Result)
	o.importer.Update(ev.Result)
	o.bus.Publish(event.NewValidationAppliedEvent(ev.Generation, ev.RuntimeID, ev.Result))
}

// SelectRuntime switches to the runtime with the given id. An unknown id is
// reported and nothing changes.
func (o *Orchestrator) SelectRuntime(id string) error {
	rt, ok := o.registry.Get(id)
	if !ok {
		err := errors.NewCollaboratorUnavailableError("runtime registry", errors.ErrUnknownRuntime).WithID(id)
		o.logger.Error("cannot select runtime", "runtime", id, "error", err.Error())
		return err
	}
	if !o.loop.Post(func() { o.switchRuntime(rt) }) {
		return errors.ErrLoopStopped
	}
	return nil
}

// NextRuntime switches to the runtime registered after the active one.
func (o *Orchestrator) NextRuntime() error {
	next := o.registry.Next()
	if next == nil {
		return errors.ErrRegistryNotInitialized
	}
	return o.SelectRuntime(next.ID)
}

func (o *Orchestrator) switchRuntime(rt *runtime.Runtime) {
	if err := o.registry.SetActive(rt); err != nil {
		o.fail("select-runtime", errors.NewCollaboratorUnavailableError("runtime registry", err).WithID(rt.ID))
	}
}

// handleRuntimeChanged runs synchronously inside Registry.SetActive.
func (o *Orchestrator) handleRuntimeChanged(e event.Event) {
	ev, ok := e.(event.RuntimeChangedEvent)
	if !ok {
		return
	}
	current, ok := o.registry.Get(ev.CurrentID)
	if !ok {
		return
	}
	log := o.logger.WithRuntime(current.ID)

	// Keep user edits: only an untouched template follows the runtime.
	if ev.Changed() && ev.PreviousID != "" && !o.loading {
		if previous, ok := o.registry.Get(ev.PreviousID); ok && o.editor.Source() == previous.Template {
			log.Debug("replacing unedited template", "previous", previous.ID)
			o.editor.SetSource(current.Template)
		}
	}

	o.requestValidation(o.editor.Source())
	o.setAffordance(event.AffordanceImportEmail, current.ID == runtime.IDEmail)

	if err := o.params.Replace(ParamRuntime, current.ID); err != nil {
		log.Warn("failed to persist runtime", "error", err.Error())
	}
	log.Info("runtime active", "previous", ev.PreviousID)
}

// LoadDocument replaces the source with a brand-new document. The runtime is
// re-detected from the content and the content is kept verbatim even when it
// would otherwise be replaced by a runtime template.
func (o *Orchestrator) LoadDocument(source, origin string) bool {
	return o.loop.Post(func() {
		o.loadGen++
		o.loadDocument(source, origin)
	})
}

func (o *Orchestrator) loadDocument(source, origin string) {
	o.loading = true
	defer func() { o.loading = false }()

	o.editor.SetSource(source)

	if rt := o.detector.Detect(source); rt != nil {
		o.switchRuntime(rt)
	}

	o.documentsLoaded.Add(1)
	o.bus.Publish(event.NewSourceLoadedEvent(o.edits, origin))
	o.logger.Info("document loaded", "origin", origin, "runtime", o.registry.Active().ID)

	o.runPipeline(o.editor.Source())
}

// safeCall runs a collaborator call, turning a panic into an error.
func safeCall(collaborator string, call func() error) error {
	var err error
	if r := panics.Try(func() { err = call() }); r != nil {
		return errors.NewCollaboratorUnavailableError(collaborator, r.AsError())
	}
	return err
}
