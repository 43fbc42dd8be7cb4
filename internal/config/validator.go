package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "validator.timeout_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Upper bounds shared by the timeout checks.
const (
	maxCommandTimeoutMs = 5 * 60 * 1000
	maxDebounceMs       = 10000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate mode
	if c.Mode != "" && !slices.Contains(ValidModes(), c.Mode) {
		errors = append(errors, ValidationError{
			Field:   "mode",
			Value:   c.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidModes(), ", ")),
		})
	}

	// Validate runtimes
	errors = append(errors, c.validateRuntimes()...)

	// Validate external tools
	errors = append(errors, validateCommand("validator", c.Validator, true)...)
	errors = append(errors, validateCommand("formatter", c.Formatter, false)...)

	// Validate Template config
	errors = append(errors, c.validateTemplate()...)

	// Validate Share config
	if c.Share.BaseURL != "" && !isHTTPURL(c.Share.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "share.base_url",
			Value:   c.Share.BaseURL,
			Message: "must be an absolute http or https URL",
		})
	}

	// Validate State config
	if c.State.MaxHistory < 1 {
		errors = append(errors, ValidationError{
			Field:   "state.max_history",
			Value:   c.State.MaxHistory,
			Message: "must be at least 1",
		})
	}

	// Validate Watch config
	if c.Watch.DebounceMs < 0 || c.Watch.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: fmt.Sprintf("must be between 0 and %d", maxDebounceMs),
		})
	}

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	// Validate AutoImport config
	if c.AutoImport.Enabled && !isHTTPURL(c.AutoImport.CDNBase) {
		errors = append(errors, ValidationError{
			Field:   "autoimport.cdn_base",
			Value:   c.AutoImport.CDNBase,
			Message: "must be an absolute http or https URL when auto-import is enabled",
		})
	}

	return errors
}

// validateRuntimes validates the runtimes list and the initial runtime
func (c *Config) validateRuntimes() []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool, len(c.Runtimes))
	for i, rt := range c.Runtimes {
		prefix := fmt.Sprintf("runtimes[%d]", i)

		if strings.TrimSpace(rt.ID) == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".id",
				Value:   rt.ID,
				Message: "cannot be empty",
			})
		} else if seen[rt.ID] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".id",
				Value:   rt.ID,
				Message: "duplicate runtime id",
			})
		}
		seen[rt.ID] = true

		if !slices.Contains(ValidProfiles(), strings.ToUpper(rt.Profile)) {
			errors = append(errors, ValidationError{
				Field:   prefix + ".profile",
				Value:   rt.Profile,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidProfiles(), ", ")),
			})
		}

		if rt.Template != "" && rt.TemplateFile != "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".template_file",
				Value:   rt.TemplateFile,
				Message: "cannot be combined with template",
			})
		}
	}

	// The initial runtime is only checked against a configured list; against
	// the built-ins an unknown id falls back to the first runtime at startup.
	if c.Runtime.Initial != "" && len(c.Runtimes) > 0 && !seen[c.Runtime.Initial] {
		errors = append(errors, ValidationError{
			Field:   "runtime.initial",
			Value:   c.Runtime.Initial,
			Message: "must name a configured runtime",
		})
	}

	return errors
}

// validateCommand validates an external tool section
func validateCommand(section string, cfg CommandConfig, required bool) []ValidationError {
	var errors []ValidationError

	if required && strings.TrimSpace(cfg.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   section + ".command",
			Value:   cfg.Command,
			Message: "cannot be empty",
		})
	}

	if cfg.TimeoutMs < 0 || cfg.TimeoutMs > maxCommandTimeoutMs {
		errors = append(errors, ValidationError{
			Field:   section + ".timeout_ms",
			Value:   cfg.TimeoutMs,
			Message: fmt.Sprintf("must be between 0 and %d", maxCommandTimeoutMs),
		})
	}

	return errors
}

// validateTemplate validates the TemplateConfig
func (c *Config) validateTemplate() []ValidationError {
	var errors []ValidationError

	if c.Template.BaseURL != "" && !isHTTPURL(c.Template.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "template.base_url",
			Value:   c.Template.BaseURL,
			Message: "must be an absolute http or https URL",
		})
	}

	if c.Template.TimeoutMs < 0 || c.Template.TimeoutMs > maxCommandTimeoutMs {
		errors = append(errors, ValidationError{
			Field:   "template.timeout_ms",
			Value:   c.Template.TimeoutMs,
			Message: fmt.Sprintf("must be between 0 and %d", maxCommandTimeoutMs),
		})
	}

	// Bodies are held in memory; 64MB is plenty for a single document
	const maxTemplateSizeKB = 64 << 10
	if c.Template.MaxSizeKB <= 0 || c.Template.MaxSizeKB > maxTemplateSizeKB {
		errors = append(errors, ValidationError{
			Field:   "template.max_size_kb",
			Value:   c.Template.MaxSizeKB,
			Message: fmt.Sprintf("must be between 1 and %d", maxTemplateSizeKB),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
