package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/depo/internal/config"
	"github.com/Iron-Ham/depo/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View run logs",
	Long: `View and filter the depo log.

By default, shows the last 50 entries of the most recent run.

Examples:
  # Show the most recent run
  depo logs

  # Show every run, warnings and errors only
  depo logs --all-runs --level warn -n 0

  # Follow one project through the last hour of runs
  depo logs --all-runs --project lib/core --since 1h

  # Search messages
  depo logs --grep "push failed"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsRunID   string
	logsAllRuns bool
	logsProject string
	logsTail    int
	logsLevel   string
	logsSince   string
	logsGrep    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsRunID, "run", "r", "", "Run ID (default: most recent)")
	logsCmd.Flags().BoolVar(&logsAllRuns, "all-runs", false, "Show entries from every run")
	logsCmd.Flags().StringVarP(&logsProject, "project", "p", "", "Only show entries for this project path")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only show entries whose message contains this text")
	logsCmd.MarkFlagsMutuallyExclusive("run", "all-runs")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	root, err := cfg.ResolveRoot()
	if err != nil {
		return fmt.Errorf("failed to resolve mirror root: %w", err)
	}

	var since time.Time
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		since = time.Now().Add(-d)
	}

	entries, err := logging.ReadEntries(cfg.ResolveLogDir(root))
	if err != nil {
		return err
	}

	runID := logsRunID
	if runID == "" && !logsAllRuns {
		runID = latestRun(entries)
	}

	entries = logging.FilterEntries(entries, logging.LogFilter{
		Level:           logsLevel,
		Project:         logsProject,
		RunID:           runID,
		MessageContains: logsGrep,
	})
	entries = entriesSince(entries, since)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintln(out, logging.FormatEntry(entry))
	}
	return nil
}

// latestRun returns the run id of the newest entry that has one.
func latestRun(entries []logging.LogEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].RunID != "" {
			return entries[i].RunID
		}
	}
	return ""
}

func entriesSince(entries []logging.LogEntry, since time.Time) []logging.LogEntry {
	if since.IsZero() {
		return entries
	}
	kept := entries[:0]
	for _, e := range entries {
		if !e.Timestamp.Before(since) {
			kept = append(kept, e)
		}
	}
	return kept
}
