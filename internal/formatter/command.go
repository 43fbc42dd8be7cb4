// Package formatter pretty-prints playground sources with an external
// formatter command.
package formatter

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/logging"
)

// DefaultCommand is the formatter executable looked up in PATH.
const DefaultCommand = "prettier"

// DefaultArgs select prettier's html parser reading from stdin.
var DefaultArgs = []string{"--parser", "html"}

// Command pipes the source through a formatter and returns its stdout.
type Command struct {
	path   string
	args   []string
	logger *logging.Logger
}

// NewCommand creates a formatter running name with args. An empty name uses
// DefaultCommand and nil args use DefaultArgs.
func NewCommand(name string, args []string, logger *logging.Logger) *Command {
	if name == "" {
		name = DefaultCommand
	}
	if args == nil {
		args = DefaultArgs
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Command{
		path:   name,
		args:   args,
		logger: logger.WithComponent("formatter"),
	}
}

// Format returns the formatted source. Every failure is user-visible: a
// missing binary, a non-zero exit (carrying the formatter's stderr) or empty
// output.
func (c *Command) Format(ctx context.Context, source string) (string, error) {
	bin, err := exec.LookPath(c.path)
	if err != nil {
		return "", errors.NewUserVisibleError("formatter not found", errors.ErrFormatterUnavailable).
			WithAction("format").
			WithTarget(c.path)
	}

	cmd := exec.CommandContext(ctx, bin, c.args...)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := firstLine(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		c.logger.Warn("formatter failed", "error", err.Error(), "stderr", stderr.String())
		return "", errors.NewUserVisibleError(msg, errors.ErrFormatFailed).WithAction("format")
	}

	out := stdout.String()
	if strings.TrimSpace(out) == "" && strings.TrimSpace(source) != "" {
		return "", errors.NewUserVisibleError("formatter returned no output", errors.ErrFormatFailed).WithAction("format")
	}
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
