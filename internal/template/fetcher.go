// Package template loads starter documents over HTTP.
package template

import (
	"context"
	"net/url"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/logging"
)

// DefaultUserAgent identifies template requests.
const DefaultUserAgent = "amp-playground"

// DefaultMaxSize bounds the size of a template body.
const DefaultMaxSize = 4 << 20

// Template is a fetched document.
type Template struct {
	URL     string
	Content string
}

// HTTPFetcher implements the orchestrator's TemplateFetcher.
type HTTPFetcher struct {
	client  *resty.Client
	baseURL *url.URL
	logger  *logging.Logger
}

// Config configures an HTTPFetcher.
type Config struct {
	// BaseURL resolves template references that are not absolute URLs.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	MaxSize   int64
}

// NewHTTPFetcher creates a fetcher. Call Close when done.
func NewHTTPFetcher(cfg Config, logger *logging.Logger) (*HTTPFetcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	f := &HTTPFetcher{logger: logger.WithComponent("template")}
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil || base.Scheme == "" {
			return nil, errors.NewValidationError("invalid template base url").WithField("template.base_url").WithValue(cfg.BaseURL)
		}
		f.baseURL = base
	}

	client := resty.New().
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html").
		SetResponseBodyLimit(cfg.MaxSize)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	f.client = client
	return f, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	return f.client.Close()
}

// Fetch implements the orchestrator's TemplateFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (string, error) {
	t, err := f.FetchTemplate(ctx, ref)
	if err != nil {
		return "", err
	}
	return t.Content, nil
}

// FetchTemplate loads ref. Failures are user-visible: an invalid reference,
// a transport error, a non-2xx status or an empty body.
func (f *HTTPFetcher) FetchTemplate(ctx context.Context, ref string) (Template, error) {
	target, err := f.resolve(ref)
	if err != nil {
		return Template{}, err
	}

	res, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		if ctx.Err() != nil {
			return Template{}, ctx.Err()
		}
		return Template{}, fetchError(target, "could not load template", err)
	}
	if !res.IsSuccess() {
		f.logger.Warn("template request failed", "url", target, "status", res.StatusCode())
		return Template{}, fetchError(target, "could not load template: "+res.Status(), nil)
	}

	content := string(res.Bytes())
	if strings.TrimSpace(content) == "" {
		return Template{}, fetchError(target, "template is empty", nil)
	}

	f.logger.Debug("template fetched", "url", target, "bytes", len(content))
	return Template{URL: target, Content: content}, nil
}

func (f *HTTPFetcher) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || ref == "" {
		return "", fetchError(ref, "invalid template url", err)
	}
	if u.Scheme == "" && f.baseURL != nil {
		u = f.baseURL.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fetchError(ref, "invalid template url", nil)
	}
	return u.String(), nil
}

func fetchError(target, message string, cause error) error {
	if cause == nil {
		cause = errors.ErrTemplateFetch
	} else {
		cause = errors.Join(errors.ErrTemplateFetch, cause)
	}
	return errors.NewUserVisibleError(message, cause).WithAction("template").WithTarget(target)
}
