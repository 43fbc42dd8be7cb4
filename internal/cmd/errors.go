package cmd

import "github.com/Iron-Ham/playground/internal/errors"

// errValidationFailed makes the process exit non-zero for invalid documents.
var errValidationFailed = errors.New("document failed validation")
