package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/depo/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "depo [project-path...]",
	Short: "Mirror Perforce depots into git and republish them",
	Long: `depo keeps a forest of bare git mirrors of Perforce depot paths up to date.

Projects are declared in a manifest. Every run imports new changes into each
project's mirror with git-p4 (cloning mirrors that do not exist yet), then
pushes the mirrors to the review host.

Positional arguments restrict the run to the given project local paths.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

var (
	downloadOnly bool
	uploadOnly   bool
	watchMode    bool
	workers      int
	prefixFilter string
	manifestPath string
)

// Execute runs the root command. SIGINT and SIGTERM cancel the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./depo.yaml, then $HOME/.config/depo/depo.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "manifest file (overrides the manifest setting)")

	rootCmd.Flags().BoolVarP(&downloadOnly, "download-only", "d", false, "only synchronize mirrors from Perforce")
	rootCmd.Flags().BoolVarP(&uploadOnly, "upload-only", "u", false, "only publish mirrors to the review host")
	rootCmd.MarkFlagsMutuallyExclusive("download-only", "upload-only")
	rootCmd.Flags().IntVarP(&workers, "workers", "j", 0, "number of concurrent imports (overrides sync.workers)")
	rootCmd.Flags().BoolVar(&watchMode, "watch", false, "keep running, synchronizing again when the manifest changes or sync.watch_interval elapses")
	rootCmd.Flags().StringVar(&prefixFilter, "prefix", "", "only publish projects whose local path is under this prefix")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(config.ConfigName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., DEPO_SYNC_WORKERS for sync.workers
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if manifestPath != "" {
		cfg.Manifest = manifestPath
	}
	if workers > 0 {
		cfg.Sync.Workers = workers
	}

	p := &pipeline{
		cfg: cfg,
		opts: runOptions{
			paths:        args,
			downloadOnly: downloadOnly,
			uploadOnly:   uploadOnly,
			watch:        watchMode,
			prefix:       prefixFilter,
		},
		out: cmd.OutOrStdout(),
	}
	return p.run(cmd.Context())
}
