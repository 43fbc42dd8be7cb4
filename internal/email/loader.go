// Package email extracts the AMP part from a MIME email message.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/logging"
)

// AMPContentType is the media type of the AMP alternative of an email.
const AMPContentType = "text/x-amp-html"

// MaxSize bounds the size of an email file.
const MaxSize = 25 << 20

// maxDepth bounds multipart nesting.
const maxDepth = 8

// FileLoader reads .eml files from disk.
type FileLoader struct {
	logger *logging.Logger
}

// NewFileLoader creates a FileLoader.
func NewFileLoader(logger *logging.Logger) *FileLoader {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &FileLoader{logger: logger.WithComponent("email")}
}

// Load implements the orchestrator's EmailLoader.
func (l *FileLoader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewUserVisibleError("could not open email", err).WithAction("import-email").WithTarget(path)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return "", errors.NewUserVisibleError("could not read email", err).WithAction("import-email").WithTarget(path)
	}
	if len(data) > MaxSize {
		return "", errors.NewUserVisibleError("email is too large", errors.ErrEmailMalformed).WithAction("import-email").WithTarget(path)
	}

	amp, err := Extract(data)
	if err != nil {
		return "", err
	}
	l.logger.Debug("email part extracted", "path", path, "bytes", len(amp))
	return amp, nil
}

// Extract returns the decoded text/x-amp-html part of a raw message.
func Extract(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", malformed("not a mime message", err)
	}
	part, found, err := findAMP(msg.Header, msg.Body, 0)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.NewUserVisibleError("email has no "+AMPContentType+" part", errors.ErrNoAMPPart).WithAction("import-email")
	}
	return part, nil
}

// header is the subset of a MIME header the walker needs.
type header interface {
	Get(key string) string
}

func findAMP(h header, body io.Reader, depth int) (string, bool, error) {
	ct := h.Get("Content-Type")
	if ct == "" {
		// RFC 2045 default.
		return "", false, nil
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", false, malformed("invalid content type", err)
	}

	switch {
	case mediaType == AMPContentType:
		content, err := decode(body, h.Get("Content-Transfer-Encoding"))
		if err != nil {
			return "", false, err
		}
		return content, true, nil
	case strings.HasPrefix(mediaType, "multipart/"):
		if depth >= maxDepth {
			return "", false, malformed("multipart nesting too deep", nil)
		}
		boundary := params["boundary"]
		if boundary == "" {
			return "", false, malformed("multipart without boundary", nil)
		}
		r := multipart.NewReader(body, boundary)
		for {
			p, err := r.NextRawPart()
			if err == io.EOF {
				return "", false, nil
			}
			if err != nil {
				return "", false, malformed("invalid multipart body", err)
			}
			content, found, err := findAMP(p.Header, p, depth+1)
			if err != nil || found {
				return content, found, err
			}
		}
	default:
		return "", false, nil
	}
}

func decode(body io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", malformed("could not decode "+AMPContentType+" part", err)
	}
	return string(data), nil
}

func malformed(msg string, cause error) error {
	if cause == nil {
		cause = errors.ErrEmailMalformed
	} else {
		cause = errors.Join(errors.ErrEmailMalformed, cause)
	}
	return errors.NewUserVisibleError(msg, cause).WithAction("import-email")
}
