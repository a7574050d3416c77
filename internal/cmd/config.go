package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/depo/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify depo configuration",
	Long: `View or modify depo configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  depo config set sync.workers 16
  depo config set publish.host https://review.example.com
  depo config set sync.max_retries 5`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/depo/depo.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settableKeys maps every key accepted by "config set" to its value kind.
var settableKeys = map[string]string{
	"manifest":               "string",
	"root":                   "string",
	"p4.user":                "string",
	"p4.port":                "string",
	"sync.workers":           "int",
	"sync.poll_interval_ms":  "int",
	"sync.max_retries":       "int",
	"sync.retry_initial_ms":  "int",
	"sync.retry_max_ms":      "int",
	"sync.watch_interval":    "string",
	"publish.host":           "string",
	"publish.push_url":       "string",
	"publish.project_prefix": "string",
	"publish.strip_prefix":   "string",
	"publish.branch":         "string",
	"publish.parent":         "string",
	"publish.username":       "string",
	"publish.password":       "string",
	"publish.timeout":        "string",
	"logging.enabled":        "bool",
	"logging.level":          "string",
	"logging.max_size_mb":    "int",
	"logging.max_backups":    "int",
	"logging.dir":            "string",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "manifest: %s\n", cfg.Manifest)
	fmt.Fprintf(out, "root: %s\n", cfg.Root)

	fmt.Fprintln(out, "p4:")
	fmt.Fprintf(out, "  user: %s\n", cfg.P4.User)
	fmt.Fprintf(out, "  port: %s\n", cfg.P4.Port)

	fmt.Fprintln(out, "sync:")
	fmt.Fprintf(out, "  workers: %d\n", cfg.Sync.Workers)
	fmt.Fprintf(out, "  poll_interval_ms: %d\n", cfg.Sync.PollIntervalMs)
	fmt.Fprintf(out, "  max_retries: %d\n", cfg.Sync.MaxRetries)
	fmt.Fprintf(out, "  retry_initial_ms: %d\n", cfg.Sync.RetryInitialMs)
	fmt.Fprintf(out, "  retry_max_ms: %d\n", cfg.Sync.RetryMaxMs)
	fmt.Fprintf(out, "  watch_interval: %s\n", cfg.Sync.WatchInterval)

	fmt.Fprintln(out, "publish:")
	fmt.Fprintf(out, "  host: %s\n", cfg.Publish.Host)
	fmt.Fprintf(out, "  push_url: %s\n", cfg.Publish.ResolvedPushURL())
	fmt.Fprintf(out, "  project_prefix: %s\n", cfg.Publish.ProjectPrefix)
	fmt.Fprintf(out, "  strip_prefix: %s\n", cfg.Publish.StripPrefix)
	fmt.Fprintf(out, "  branch: %s\n", cfg.Publish.Branch)
	fmt.Fprintf(out, "  parent: %s\n", cfg.Publish.Parent)
	fmt.Fprintf(out, "  username: %s\n", cfg.Publish.Username)
	if cfg.Publish.Password != "" {
		fmt.Fprintf(out, "  password: ********\n")
	}
	fmt.Fprintf(out, "  timeout: %s\n", cfg.Publish.Timeout)

	fmt.Fprintln(out, "projects:")
	fmt.Fprintf(out, "  include: [%s]\n", strings.Join(cfg.Projects.Include, ", "))
	fmt.Fprintf(out, "  exclude: [%s]\n", strings.Join(cfg.Projects.Exclude, ", "))

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  dir: %s\n", cfg.Logging.Dir)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	keyType, ok := settableKeys[key]
	if !ok {
		keys := make([]string, 0, len(settableKeys))
		for k := range settableKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(keys, ", "))
	}

	var typedValue any
	switch keyType {
	case "string":
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	viper.Set(key, typedValue)

	// Refuse to persist a value the loader would reject
	if _, err := config.Load(); err != nil {
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

// defaultConfigFile is written by "config init".
const defaultConfigFile = `# depo configuration

# Manifest describing the project tree
manifest: manifest.yaml
# Directory mirrors are created under (<root>/<path>.git)
root: .

# Perforce connection written into every new mirror
p4:
  user: ""
  port: ""

sync:
  # Maximum number of concurrent git-p4 imports
  workers: 8
  # How long each scheduler tick waits on one import, in milliseconds
  poll_interval_ms: 100
  # Retries before a failing project is reported stuck (0 retries forever)
  max_retries: 0
  # First retry delay and cap, in milliseconds
  retry_initial_ms: 1000
  retry_max_ms: 60000
  # Time between passes with --watch when the manifest is unchanged
  watch_interval: 10m

publish:
  # Review host base URL (required unless running with --download-only)
  host: ""
  # Git base URL for pushes (default: host)
  push_url: ""
  project_prefix: ""
  strip_prefix: ""
  branch: master
  parent: All-Projects
  username: ""
  password: ""
  timeout: 30s

projects:
  # Glob patterns matched against project local paths
  include: []
  exclude: []

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3
  # Relative to root unless absolute
  dir: .depo/logs
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'depo config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Set publish.host and p4.port before the first run.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. ./%s.yaml (current directory)\n", config.ConfigName)
	fmt.Fprintf(out, "  2. %s\n", configFile)
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_SYNC_WORKERS)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}
