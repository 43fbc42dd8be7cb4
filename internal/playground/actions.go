package playground

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"time"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
)

// Loading operation names carried by LoadingEvent.
const (
	OperationTemplate = "template"
	OperationEmail    = "email"
)

// Format pretty-prints the current source. The result is applied only if the
// source has not changed and no newer format was requested meanwhile; a
// formatter failure is surfaced and leaves the source untouched.
func (o *Orchestrator) Format() bool {
	return o.loop.Post(o.startFormat)
}

func (o *Orchestrator) startFormat() {
	if o.formatter == nil {
		o.formatsFailed.Add(1)
		o.fail("format", unavailable("no formatter configured", errors.ErrFormatterUnavailable, "format"))
		return
	}

	source := o.editor.Source()
	o.formatGen++
	gen := o.formatGen

	o.loop.Go(func(ctx context.Context) func() {
		formatted, err := o.runFormatter(ctx, source)
		return func() { o.finishFormat(gen, source, formatted, err) }
	})
}

func (o *Orchestrator) finishFormat(gen uint64, source, formatted string, err error) {
	if gen != o.formatGen || o.editor.Source() != source {
		o.formatsDiscarded.Add(1)
		o.logger.Debug("discarding format result",
			"generation", gen,
			"current", o.formatGen,
			"reason", errors.ErrStaleResult.Error(),
		)
		o.bus.Publish(event.NewFormatCompletedEvent(gen, false, errors.ErrStaleResult))
		return
	}

	if err != nil {
		o.formatsFailed.Add(1)
		o.fail("format", err)
		o.bus.Publish(event.NewFormatCompletedEvent(gen, false, err))
		return
	}

	o.formatsApplied.Add(1)
	o.editor.SetSource(formatted)
	o.bus.Publish(event.NewFormatCompletedEvent(gen, true, nil))
}

// runFormatter calls the formatter off the loop. Every failure comes back as
// a user-visible error.
func (o *Orchestrator) runFormatter(ctx context.Context, source string) (string, error) {
	timeout := o.opts.FormatTimeout
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	var formatted string
	err := safeCall("formatter", func() error {
		var err error
		formatted, err = o.formatter.Format(ctx, source)
		return err
	})
	err = timeoutError(ctx, "format", timeout, err)
	if err != nil && !errors.IsUserFacing(err) {
		err = errors.NewUserVisibleError("could not format source", err).WithAction("format")
	}
	return formatted, err
}

// LoadTemplate fetches a template and loads it as a new document. The editor
// shows its loading indicator meanwhile. On success the template URL is kept
// in the shareable state; on failure the source is left untouched. A later
// load supersedes an earlier one still in flight.
func (o *Orchestrator) LoadTemplate(templateURL string) bool {
	return o.loop.Post(func() { o.startTemplateLoad(templateURL) })
}

func (o *Orchestrator) startTemplateLoad(templateURL string) {
	if o.templates == nil {
		o.fail("template", unavailable("template loading is not available", nil, "template"))
		return
	}

	o.loadGen++
	gen := o.loadGen
	o.beginLoading(OperationTemplate)

	timeout := o.opts.FetchTimeout
	o.loop.Go(func(ctx context.Context) func() {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()

		var content string
		err := safeCall("template fetcher", func() error {
			var err error
			content, err = o.templates.Fetch(ctx, templateURL)
			return err
		})
		err = timeoutError(ctx, "template fetch", timeout, err)

		return func() {
			defer o.endLoading(OperationTemplate)
			if gen != o.loadGen {
				o.logger.Debug("discarding superseded template", "url", templateURL)
				return
			}
			if err != nil {
				if !errors.IsUserFacing(err) {
					err = errors.NewUserVisibleError("could not load template", err).WithAction("template").WithTarget(templateURL)
				}
				o.fail("template", err)
				return
			}

			o.loadDocument(content, templateURL)
			if err := o.params.Replace(ParamURL, templateURL); err != nil {
				o.logger.Warn("failed to persist template url", "error", err.Error())
			}
			o.bus.Publish(event.NewTemplateLoadedEvent(templateURL))
		}
	})
}

// ImportEmail loads the AMP part of an email file, formats it and loads the
// result as a new document. A failure at either stage is surfaced and the
// source keeps its prior value.
func (o *Orchestrator) ImportEmail(path string) bool {
	return o.loop.Post(func() { o.startEmailImport(path) })
}

func (o *Orchestrator) startEmailImport(path string) {
	if o.emails == nil {
		o.fail("import-email", unavailable("email import is not available", nil, "import-email"))
		return
	}

	o.loadGen++
	gen := o.loadGen
	o.beginLoading(OperationEmail)

	timeout := o.opts.FetchTimeout
	o.loop.Go(func(ctx context.Context) func() {
		content, err := o.loadEmail(ctx, path, timeout)
		if err == nil && o.formatter != nil {
			content, err = o.runFormatter(ctx, content)
		}

		return func() {
			defer o.endLoading(OperationEmail)
			if gen != o.loadGen {
				o.logger.Debug("discarding superseded email import", "path", path)
				return
			}
			if err != nil {
				o.fail("import-email", errors.NewUserVisibleError("could not load email", err).WithAction("import-email").WithTarget(path))
				return
			}

			o.loadDocument(content, path)
			o.bus.Publish(event.NewEmailImportedEvent(path))
		}
	})
}

func (o *Orchestrator) loadEmail(ctx context.Context, path string, timeout time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	var content string
	err := safeCall("email loader", func() error {
		var err error
		content, err = o.emails.Load(ctx, path)
		return err
	})
	return content, timeoutError(ctx, "email load", timeout, err)
}

// unavailable reports an operation the session was not configured for. It is
// informational: nothing is wrong with the document.
func unavailable(message string, cause error, action string) error {
	return errors.NewUserVisibleError(message, cause).WithAction(action).WithSeverity(errors.SeverityInfo)
}

func (o *Orchestrator) beginLoading(operation string) {
	o.loadsInFlight++
	o.editor.ShowLoadingIndicator()
	o.bus.Publish(event.NewLoadingStartedEvent(operation))
}

// endLoading hides the indicator once the last load in flight has finished,
// superseded loads included.
func (o *Orchestrator) endLoading(operation string) {
	o.loadsInFlight--
	if o.loadsInFlight == 0 {
		if h, ok := o.editor.(loadingHider); ok {
			h.HideLoadingIndicator()
		}
	}
	o.bus.Publish(event.NewLoadingFinishedEvent(operation))
}

// ShowPreview shows the preview and records it as a new history entry.
func (o *Orchestrator) ShowPreview() bool {
	return o.loop.Post(func() { o.setPreviewVisible(true, true) })
}

// HidePreview hides the preview and records it as a new history entry.
func (o *Orchestrator) HidePreview() bool {
	return o.loop.Post(func() { o.setPreviewVisible(false, true) })
}

// Back returns to the previous history entry and restores the preview
// visibility recorded there.
func (o *Orchestrator) Back() bool {
	return o.loop.Post(func() {
		if o.params.Pop() {
			o.restorePreview()
		}
	})
}

func (o *Orchestrator) restorePreview() {
	visible := o.opts.PreviewVisible
	if v, ok := o.params.Get(ParamPreview); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			visible = b
		}
	}
	o.setPreviewVisible(visible, false)
}

func (o *Orchestrator) setPreviewVisible(visible, record bool) {
	if record {
		if err := o.params.Push(ParamPreview, strconv.FormatBool(visible)); err != nil {
			o.logger.Warn("failed to persist preview state", "error", err.Error())
		}
	}
	if v, ok := o.preview.(visibilitySetter); ok {
		v.SetVisible(visible)
	}
	o.setAffordance(event.AffordancePreview, visible)
	if o.opts.Mode == ModeEmbed {
		o.setAffordance(event.AffordanceHidePreview, visible)
	}
}

// ShareURL builds a link that reopens the current document: the active
// runtime and template URL as query parameters, the source in the fragment.
func (o *Orchestrator) ShareURL() (string, error) {
	if o.opts.ShareBaseURL == "" {
		return "", errors.NewValidationError("share base url is not configured").WithField("share.base_url")
	}
	u, err := url.Parse(o.opts.ShareBaseURL)
	if err != nil {
		return "", errors.NewValidationError("invalid share base url").WithField("share.base_url").WithValue(o.opts.ShareBaseURL).WithCause(err)
	}

	q := u.Query()
	if active := o.registry.Active(); active != nil {
		q.Set(ParamRuntime, active.ID)
	}
	if templateURL, ok := o.params.Get(ParamURL); ok && templateURL != "" {
		q.Set(ParamURL, templateURL)
	}
	u.RawQuery = q.Encode()
	u.Fragment = "src=" + base64.RawURLEncoding.EncodeToString([]byte(o.editor.Source()))
	return u.String(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// timeoutError replaces a failure caused by the deadline with a TimeoutError.
func timeoutError(ctx context.Context, operation string, d time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError(operation, d).WithCause(err)
	}
	return err
}
