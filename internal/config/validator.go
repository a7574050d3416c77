package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "sync.workers")
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

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Manifest) == "" {
		errors = append(errors, ValidationError{
			Field:   "manifest",
			Value:   c.Manifest,
			Message: "cannot be empty",
		})
	}
	if strings.TrimSpace(c.Root) == "" {
		errors = append(errors, ValidationError{
			Field:   "root",
			Value:   c.Root,
			Message: "cannot be empty",
		})
	}

	errors = append(errors, c.validateSync()...)
	errors = append(errors, c.validatePublish()...)
	errors = append(errors, c.validateProjects()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateSync validates the SyncConfig
func (c *Config) validateSync() []ValidationError {
	var errors []ValidationError

	const maxWorkers = 256
	if c.Sync.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "sync.workers",
			Value:   c.Sync.Workers,
			Message: "must be at least 1",
		})
	}
	if c.Sync.Workers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "sync.workers",
			Value:   c.Sync.Workers,
			Message: fmt.Sprintf("exceeds maximum of %d", maxWorkers),
		})
	}

	// Poll interval bounds
	const minPollInterval = 1
	const maxPollInterval = 5000
	if c.Sync.PollIntervalMs < minPollInterval {
		errors = append(errors, ValidationError{
			Field:   "sync.poll_interval_ms",
			Value:   c.Sync.PollIntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minPollInterval),
		})
	}
	if c.Sync.PollIntervalMs > maxPollInterval {
		errors = append(errors, ValidationError{
			Field:   "sync.poll_interval_ms",
			Value:   c.Sync.PollIntervalMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxPollInterval),
		})
	}

	if c.Sync.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.max_retries",
			Value:   c.Sync.MaxRetries,
			Message: "must be non-negative (0 retries forever)",
		})
	}
	if c.Sync.RetryInitialMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.retry_initial_ms",
			Value:   c.Sync.RetryInitialMs,
			Message: "must be non-negative",
		})
	}
	if c.Sync.RetryMaxMs < c.Sync.RetryInitialMs {
		errors = append(errors, ValidationError{
			Field:   "sync.retry_max_ms",
			Value:   c.Sync.RetryMaxMs,
			Message: "must not be less than sync.retry_initial_ms",
		})
	}
	if c.Sync.WatchInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.watch_interval",
			Value:   c.Sync.WatchInterval,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePublish validates the PublishConfig. An empty host is valid; it
// only matters when publishing is requested.
func (c *Config) validatePublish() []ValidationError {
	var errors []ValidationError

	for field, value := range map[string]string{
		"publish.host":     c.Publish.Host,
		"publish.push_url": c.Publish.PushURL,
	} {
		if value == "" {
			continue
		}
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   value,
				Message: "must be an absolute URL (e.g. https://review.example.com)",
			})
		}
	}

	if strings.TrimSpace(c.Publish.Branch) == "" {
		errors = append(errors, ValidationError{
			Field:   "publish.branch",
			Value:   c.Publish.Branch,
			Message: "cannot be empty",
		})
	} else if strings.HasPrefix(c.Publish.Branch, "refs/") {
		errors = append(errors, ValidationError{
			Field:   "publish.branch",
			Value:   c.Publish.Branch,
			Message: "must be a short branch name, not a full ref",
		})
	}

	if c.Publish.Password != "" && c.Publish.Username == "" {
		errors = append(errors, ValidationError{
			Field:   "publish.username",
			Value:   c.Publish.Username,
			Message: "is required when publish.password is set",
		})
	}
	if c.Publish.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "publish.timeout",
			Value:   c.Publish.Timeout,
			Message: "must be non-negative (0 disables timeout)",
		})
	}

	return errors
}

// validateProjects checks that every include/exclude entry is a valid glob
func (c *Config) validateProjects() []ValidationError {
	var errors []ValidationError

	check := func(field string, patterns []string) {
		for _, pattern := range patterns {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errors = append(errors, ValidationError{
					Field:   field,
					Value:   pattern,
					Message: fmt.Sprintf("invalid glob pattern: %v", err),
				})
			}
		}
	}
	check("projects.include", c.Projects.Include)
	check("projects.exclude", c.Projects.Exclude)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Empty falls back to "info"
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative (0 disables rotation)",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
