package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete depo configuration
type Config struct {
	// Manifest is the path to the manifest document describing the project tree
	Manifest string `mapstructure:"manifest"`
	// Root is the directory mirrors are created under (<root>/<localPath>.git)
	Root     string         `mapstructure:"root"`
	P4       P4Config       `mapstructure:"p4"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Projects ProjectsConfig `mapstructure:"projects"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// P4Config holds the credentials written into every new mirror so that
// git-p4 can reach the Perforce server
type P4Config struct {
	// User is stored as git-p4.user
	User string `mapstructure:"user"`
	// Port is stored as git-p4.port (e.g. "ssl:perforce.example.com:1666")
	Port string `mapstructure:"port"`
}

// SyncConfig controls the synchronization worker pool
type SyncConfig struct {
	// Workers is the maximum number of concurrent git-p4 imports (default: 8)
	Workers int `mapstructure:"workers"`
	// PollIntervalMs bounds how long each scheduler tick waits on one import (default: 100)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// MaxRetries caps retries of a failing project before it is reported stuck.
	// 0 retries forever.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryInitialMs is the first retry delay; later delays grow exponentially (default: 1000)
	RetryInitialMs int `mapstructure:"retry_initial_ms"`
	// RetryMaxMs caps the retry delay (default: 60000)
	RetryMaxMs int `mapstructure:"retry_max_ms"`
	// WatchInterval is how long --watch waits between passes when the manifest is unchanged
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// PublishConfig describes the review host mirrors are republished to
type PublishConfig struct {
	// Host is the review host base URL (e.g. "https://review.example.com")
	Host string `mapstructure:"host"`
	// PushURL is the git base URL projects are pushed to (default: Host)
	PushURL string `mapstructure:"push_url"`
	// ProjectPrefix is prepended to every host-side project identifier
	ProjectPrefix string `mapstructure:"project_prefix"`
	// StripPrefix is removed from a project's local path before the prefix is applied
	StripPrefix string `mapstructure:"strip_prefix"`
	// Branch is the branch published on the host (default: "master")
	Branch string `mapstructure:"branch"`
	// Parent is the category new host projects are created under (default: "All-Projects")
	Parent string `mapstructure:"parent"`
	// Username and Password authenticate REST calls; empty uses anonymous access
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Timeout bounds each REST call (default: 30s)
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProjectsConfig selects which manifest projects a run touches
type ProjectsConfig struct {
	// Include limits runs to projects whose local path matches one of these globs
	Include []string `mapstructure:"include"`
	// Exclude removes projects whose local path matches one of these globs
	Exclude []string `mapstructure:"exclude"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Dir is where depo.log is written, relative to Root unless absolute (default: ".depo/logs")
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Manifest: "manifest.yaml",
		Root:     ".",
		Sync: SyncConfig{
			Workers:        8,
			PollIntervalMs: 100,
			MaxRetries:     0,
			RetryInitialMs: 1000,
			RetryMaxMs:     60000,
			WatchInterval:  10 * time.Minute,
		},
		Publish: PublishConfig{
			Branch:  "master",
			Parent:  "All-Projects",
			Timeout: 30 * time.Second,
		},
		Projects: ProjectsConfig{
			Include: []string{},
			Exclude: []string{},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Dir:        filepath.Join(".depo", "logs"),
		},
	}
}

// PollInterval returns the poll interval as a time.Duration
func (c *SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RetryInitial returns the first retry delay as a time.Duration
func (c *SyncConfig) RetryInitial() time.Duration {
	return time.Duration(c.RetryInitialMs) * time.Millisecond
}

// RetryMax returns the retry delay cap as a time.Duration
func (c *SyncConfig) RetryMax() time.Duration {
	return time.Duration(c.RetryMaxMs) * time.Millisecond
}

// ResolvedPushURL returns the base URL used for git pushes.
func (c *PublishConfig) ResolvedPushURL() string {
	if c.PushURL != "" {
		return strings.TrimRight(c.PushURL, "/")
	}
	return strings.TrimRight(c.Host, "/")
}

// ResolveRoot returns Root as an absolute path, expanding a leading ~.
func (c *Config) ResolveRoot() (string, error) {
	return filepath.Abs(expandHome(c.Root))
}

// ResolveLogDir returns the log directory, resolved relative to root.
func (c *Config) ResolveLogDir(root string) string {
	dir := expandHome(c.Logging.Dir)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir
}

// ResolveManifest returns the manifest path, expanding a leading ~.
func (c *Config) ResolveManifest() string {
	return expandHome(c.Manifest)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("manifest", defaults.Manifest)
	viper.SetDefault("root", defaults.Root)

	// P4 defaults
	viper.SetDefault("p4.user", defaults.P4.User)
	viper.SetDefault("p4.port", defaults.P4.Port)

	// Sync defaults
	viper.SetDefault("sync.workers", defaults.Sync.Workers)
	viper.SetDefault("sync.poll_interval_ms", defaults.Sync.PollIntervalMs)
	viper.SetDefault("sync.max_retries", defaults.Sync.MaxRetries)
	viper.SetDefault("sync.retry_initial_ms", defaults.Sync.RetryInitialMs)
	viper.SetDefault("sync.retry_max_ms", defaults.Sync.RetryMaxMs)
	viper.SetDefault("sync.watch_interval", defaults.Sync.WatchInterval)

	// Publish defaults
	viper.SetDefault("publish.host", defaults.Publish.Host)
	viper.SetDefault("publish.push_url", defaults.Publish.PushURL)
	viper.SetDefault("publish.project_prefix", defaults.Publish.ProjectPrefix)
	viper.SetDefault("publish.strip_prefix", defaults.Publish.StripPrefix)
	viper.SetDefault("publish.branch", defaults.Publish.Branch)
	viper.SetDefault("publish.parent", defaults.Publish.Parent)
	viper.SetDefault("publish.username", defaults.Publish.Username)
	viper.SetDefault("publish.password", defaults.Publish.Password)
	viper.SetDefault("publish.timeout", defaults.Publish.Timeout)

	// Project selection defaults
	viper.SetDefault("projects.include", defaults.Projects.Include)
	viper.SetDefault("projects.exclude", defaults.Projects.Exclude)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigName is the config file name without extension, looked up in the
// working directory and then in ConfigDir.
const ConfigName = "depo"

// EnvPrefix prefixes environment overrides (DEPO_SYNC_WORKERS for sync.workers).
const EnvPrefix = "DEPO"

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "depo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".depo"
	}
	return filepath.Join(home, ".config", "depo")
}

// ConfigFile returns the path to the user config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigName+".yaml")
}
