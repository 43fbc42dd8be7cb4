package validator

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/logging"
)

// DefaultCommand is the validator executable looked up in PATH.
const DefaultCommand = "amphtml-validator"

// Command validates sources with amphtml-validator. The source is written to
// the command's stdin and the JSON report is read from stdout.
type Command struct {
	path   string
	args   []string
	logger *logging.Logger
}

// NewCommand creates a validator running name with extra leading args.
// An empty name uses DefaultCommand.
func NewCommand(name string, args []string, logger *logging.Logger) *Command {
	if name == "" {
		name = DefaultCommand
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Command{
		path:   name,
		args:   args,
		logger: logger.WithComponent("validator"),
	}
}

// Validate runs the validator for one source under profile.
func (c *Command) Validate(ctx context.Context, source string, profile Profile) (Result, error) {
	bin, err := exec.LookPath(c.path)
	if err != nil {
		return Result{}, errors.NewCollaboratorUnavailableError("validator", errors.ErrValidatorUnavailable).WithID(c.path)
	}

	args := append([]string{}, c.args...)
	args = append(args, "--format=json", "--html_format="+string(profile), "-")

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The validator exits non-zero for a failing document; the report is
	// still on stdout.
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	result, parseErr := ParseReport(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			// A crash without a report says nothing about the document.
			cause := errors.Wrapf(runErr, "validator failed: %s", strings.TrimSpace(stderr.String()))
			return Result{}, errors.NewCollaboratorUnavailableError("validator", cause).WithID(c.path).WithRetryable(true)
		}
		return Result{}, parseErr
	}

	c.logger.Debug("validation finished",
		"profile", string(profile),
		"status", string(result.Status),
		"errors", result.ErrorCount(),
		"warnings", result.WarningCount(),
	)
	return result, nil
}

// ParseReport parses the JSON written by amphtml-validator --format=json.
// The report is keyed by input name ("-" for stdin); the first entry is used.
func ParseReport(data []byte) (Result, error) {
	if !gjson.ValidBytes(data) {
		return Result{}, errors.NewValidationError("validator output is not valid JSON").WithValue(truncate(string(data), 200))
	}

	root := gjson.ParseBytes(data)
	report := root
	if !root.Get("status").Exists() {
		report = gjson.Result{}
		root.ForEach(func(_, value gjson.Result) bool {
			report = value
			return false
		})
	}
	if !report.Exists() || !report.Get("status").Exists() {
		return Result{}, errors.NewValidationError("validator output has no status")
	}

	result := Result{Status: parseStatus(report.Get("status").String())}
	for _, e := range report.Get("errors").Array() {
		finding := Error{
			Severity: Severity(strings.ToUpper(e.Get("severity").String())),
			Line:     int(e.Get("line").Int()),
			Col:      int(e.Get("col").Int()),
			Code:     e.Get("code").String(),
			Message:  e.Get("message").String(),
			SpecURL:  e.Get("specUrl").String(),
		}
		for _, p := range e.Get("params").Array() {
			finding.Params = append(finding.Params, p.String())
		}
		result.Errors = append(result.Errors, finding)
	}
	return result, nil
}

func parseStatus(s string) Status {
	switch strings.ToUpper(s) {
	case string(StatusPass):
		return StatusPass
	case string(StatusFail):
		return StatusFail
	default:
		return StatusUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
