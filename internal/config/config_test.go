package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Manifest != "manifest.yaml" {
		t.Errorf("Manifest = %q, want %q", cfg.Manifest, "manifest.yaml")
	}
	if cfg.Root != "." {
		t.Errorf("Root = %q, want %q", cfg.Root, ".")
	}

	// Verify default sync config
	if cfg.Sync.Workers != 8 {
		t.Errorf("Sync.Workers = %d, want 8", cfg.Sync.Workers)
	}
	if cfg.Sync.PollIntervalMs != 100 {
		t.Errorf("Sync.PollIntervalMs = %d, want 100", cfg.Sync.PollIntervalMs)
	}
	if cfg.Sync.MaxRetries != 0 {
		t.Errorf("Sync.MaxRetries = %d, want 0", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.WatchInterval != 10*time.Minute {
		t.Errorf("Sync.WatchInterval = %v, want 10m", cfg.Sync.WatchInterval)
	}

	// Verify default publish config
	if cfg.Publish.Branch != "master" {
		t.Errorf("Publish.Branch = %q, want %q", cfg.Publish.Branch, "master")
	}
	if cfg.Publish.Parent != "All-Projects" {
		t.Errorf("Publish.Parent = %q, want %q", cfg.Publish.Parent, "All-Projects")
	}
	if cfg.Publish.Timeout != 30*time.Second {
		t.Errorf("Publish.Timeout = %v, want 30s", cfg.Publish.Timeout)
	}

	// Verify default logging config
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestSyncConfig_Durations(t *testing.T) {
	cfg := SyncConfig{PollIntervalMs: 250, RetryInitialMs: 500, RetryMaxMs: 4000}

	if got := cfg.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 250ms", got)
	}
	if got := cfg.RetryInitial(); got != 500*time.Millisecond {
		t.Errorf("RetryInitial() = %v, want 500ms", got)
	}
	if got := cfg.RetryMax(); got != 4*time.Second {
		t.Errorf("RetryMax() = %v, want 4s", got)
	}
}

func TestPublishConfig_ResolvedPushURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  PublishConfig
		want string
	}{
		{
			name: "falls back to host",
			cfg:  PublishConfig{Host: "https://review.example.com/"},
			want: "https://review.example.com",
		},
		{
			name: "explicit push url wins",
			cfg:  PublishConfig{Host: "https://review.example.com", PushURL: "ssh://review.example.com:29418"},
			want: "ssh://review.example.com:29418",
		},
		{
			name: "both empty",
			cfg:  PublishConfig{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolvedPushURL(); got != tt.want {
				t.Errorf("ResolvedPushURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_ResolveLogDir(t *testing.T) {
	cfg := Default()
	root := filepath.Join(string(filepath.Separator), "srv", "mirrors")

	if got, want := cfg.ResolveLogDir(root), filepath.Join(root, ".depo", "logs"); got != want {
		t.Errorf("ResolveLogDir() = %q, want %q", got, want)
	}

	abs := filepath.Join(string(filepath.Separator), "var", "log", "depo")
	cfg.Logging.Dir = abs
	if got := cfg.ResolveLogDir(root); got != abs {
		t.Errorf("ResolveLogDir() with absolute dir = %q, want %q", got, abs)
	}
}

func TestConfig_ResolveRoot(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg := Default()
	cfg.Root = "~/mirrors"
	got, err := cfg.ResolveRoot()
	if err != nil {
		t.Fatalf("ResolveRoot() error = %v", err)
	}
	if want := filepath.Join(home, "mirrors"); got != want {
		t.Errorf("ResolveRoot() = %q, want %q", got, want)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/depo"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "depo")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/depo/depo.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestLoad(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("defaults load and validate", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Sync.Workers != 8 {
			t.Errorf("Load().Sync.Workers = %d, want 8", cfg.Sync.Workers)
		}
	})

	t.Run("overrides are applied", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.Set("sync.workers", 2)
		viper.Set("projects.exclude", []string{"vendor/**"})

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Sync.Workers != 2 {
			t.Errorf("Sync.Workers = %d, want 2", cfg.Sync.Workers)
		}
		if len(cfg.Projects.Exclude) != 1 || cfg.Projects.Exclude[0] != "vendor/**" {
			t.Errorf("Projects.Exclude = %v", cfg.Projects.Exclude)
		}
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.Set("sync.workers", 0)

		if _, err := Load(); err == nil {
			t.Fatal("expected Load() to fail for zero workers")
		}
	})

	t.Run("Get falls back to defaults", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.Set("logging.level", "loud")

		cfg := Get()
		if cfg.Logging.Level != "info" {
			t.Errorf("Get().Logging.Level = %q, want default %q", cfg.Logging.Level, "info")
		}
	})
}
