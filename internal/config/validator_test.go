package config

import (
	"strings"
	"testing"
)

func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "sync.workers",
		Value:   0,
		Message: "must be at least 1",
	}

	expected := "sync.workers: must be at least 1 (got: 0)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "val1", Message: "msg1"},
		}
		expected := "field1: msg1 (got: val1)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "val1", Message: "msg1"},
			{Field: "field2", Value: "val2", Message: "msg2"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should contain count, got %q", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should contain all fields, got %q", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func TestConfig_Validate_Required(t *testing.T) {
	cfg := Default()
	cfg.Manifest = " "
	cfg.Root = ""
	errs := cfg.Validate()

	if !hasFieldError(errs, "manifest") {
		t.Error("expected error for empty manifest")
	}
	if !hasFieldError(errs, "root") {
		t.Error("expected error for empty root")
	}
}

func TestConfig_Validate_Sync(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
		wantErr   bool
	}{
		{
			name:      "single worker is valid",
			modify:    func(c *Config) { c.Sync.Workers = 1 },
			wantField: "sync.workers",
			wantErr:   false,
		},
		{
			name:      "zero workers",
			modify:    func(c *Config) { c.Sync.Workers = 0 },
			wantField: "sync.workers",
			wantErr:   true,
		},
		{
			name:      "too many workers",
			modify:    func(c *Config) { c.Sync.Workers = 1000 },
			wantField: "sync.workers",
			wantErr:   true,
		},
		{
			name:      "zero poll interval",
			modify:    func(c *Config) { c.Sync.PollIntervalMs = 0 },
			wantField: "sync.poll_interval_ms",
			wantErr:   true,
		},
		{
			name:      "poll interval too large",
			modify:    func(c *Config) { c.Sync.PollIntervalMs = 10000 },
			wantField: "sync.poll_interval_ms",
			wantErr:   true,
		},
		{
			name:      "negative max retries",
			modify:    func(c *Config) { c.Sync.MaxRetries = -1 },
			wantField: "sync.max_retries",
			wantErr:   true,
		},
		{
			name:      "bounded retries",
			modify:    func(c *Config) { c.Sync.MaxRetries = 5 },
			wantField: "sync.max_retries",
			wantErr:   false,
		},
		{
			name: "retry max below initial",
			modify: func(c *Config) {
				c.Sync.RetryInitialMs = 5000
				c.Sync.RetryMaxMs = 1000
			},
			wantField: "sync.retry_max_ms",
			wantErr:   true,
		},
		{
			name: "zero retry delays",
			modify: func(c *Config) {
				c.Sync.RetryInitialMs = 0
				c.Sync.RetryMaxMs = 0
			},
			wantField: "sync.retry_initial_ms",
			wantErr:   false,
		},
		{
			name:      "negative watch interval",
			modify:    func(c *Config) { c.Sync.WatchInterval = -1 },
			wantField: "sync.watch_interval",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if got := hasFieldError(cfg.Validate(), tt.wantField); got != tt.wantErr {
				t.Errorf("error for %s = %v, want %v", tt.wantField, got, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Publish(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
		wantErr   bool
	}{
		{
			name:      "valid host",
			modify:    func(c *Config) { c.Publish.Host = "https://review.example.com" },
			wantField: "publish.host",
			wantErr:   false,
		},
		{
			name:      "host without scheme",
			modify:    func(c *Config) { c.Publish.Host = "review.example.com" },
			wantField: "publish.host",
			wantErr:   true,
		},
		{
			name:      "ssh push url",
			modify:    func(c *Config) { c.Publish.PushURL = "ssh://git@review.example.com:29418" },
			wantField: "publish.push_url",
			wantErr:   false,
		},
		{
			name:      "empty branch",
			modify:    func(c *Config) { c.Publish.Branch = "" },
			wantField: "publish.branch",
			wantErr:   true,
		},
		{
			name:      "full ref as branch",
			modify:    func(c *Config) { c.Publish.Branch = "refs/heads/main" },
			wantField: "publish.branch",
			wantErr:   true,
		},
		{
			name:      "password without username",
			modify:    func(c *Config) { c.Publish.Password = "secret" },
			wantField: "publish.username",
			wantErr:   true,
		},
		{
			name:      "negative timeout",
			modify:    func(c *Config) { c.Publish.Timeout = -1 },
			wantField: "publish.timeout",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if got := hasFieldError(cfg.Validate(), tt.wantField); got != tt.wantErr {
				t.Errorf("error for %s = %v, want %v", tt.wantField, got, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Projects(t *testing.T) {
	t.Run("valid globs", func(t *testing.T) {
		cfg := Default()
		cfg.Projects.Include = []string{"libs/*", "apps/**"}
		cfg.Projects.Exclude = []string{"{vendor,third_party}/**"}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("malformed glob", func(t *testing.T) {
		cfg := Default()
		cfg.Projects.Exclude = []string{"libs/[a-"}
		if !hasFieldError(cfg.Validate(), "projects.exclude") {
			t.Error("expected error for malformed exclude glob")
		}
	})
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", ""} {
			cfg := Default()
			cfg.Logging.Level = level
			if hasFieldError(cfg.Validate(), "logging.level") {
				t.Errorf("level %q should be valid", level)
			}
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "invalid"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for invalid log level")
		}
	})

	t.Run("case sensitive log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "INFO"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for uppercase log level")
		}
	})

	t.Run("negative rotation values", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = -1
		cfg.Logging.MaxBackups = -1
		errs := cfg.Validate()
		if !hasFieldError(errs, "logging.max_size_mb") {
			t.Error("expected error for negative max_size_mb")
		}
		if !hasFieldError(errs, "logging.max_backups") {
			t.Error("expected error for negative max_backups")
		}
	})
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Sync.Workers = 0
	cfg.Logging.Level = "bogus"
	cfg.Publish.Branch = ""

	if errs := cfg.Validate(); len(errs) < 3 {
		t.Errorf("expected at least 3 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}

	if len(levels) != len(expected) {
		t.Fatalf("ValidLogLevels() returned %d levels, want %d", len(levels), len(expected))
	}
	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], level)
		}
	}
}
