package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/depo/internal/config"
	"github.com/Iron-Ham/depo/internal/manifest"
	"github.com/Iron-Ham/depo/internal/mirror"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List manifest projects",
	Long: `List every project declared by the manifest with its depot path, sync
policy and whether its mirror exists under the mirror root.`,
	Args: cobra.NoArgs,
	RunE: runProjects,
}

var (
	projectsSelectedOnly bool
	projectsTokens       bool
)

func init() {
	rootCmd.AddCommand(projectsCmd)

	projectsCmd.Flags().BoolVar(&projectsSelectedOnly, "selected", false, "Only list projects selected by projects.include/exclude")
	projectsCmd.Flags().BoolVar(&projectsTokens, "tokens", false, "Print each project's manifest token instead of a table")
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if manifestPath != "" {
		cfg.Manifest = manifestPath
	}
	root, err := cfg.ResolveRoot()
	if err != nil {
		return fmt.Errorf("failed to resolve mirror root: %w", err)
	}

	m, err := manifest.LoadFile(cfg.ResolveManifest())
	if err != nil {
		return err
	}

	var filter *manifest.Filter
	if projectsSelectedOnly {
		filter, err = manifest.NewFilter(cfg.Projects.Include, cfg.Projects.Exclude)
		if err != nil {
			return err
		}
	}

	if projectsTokens {
		fmt.Fprint(cmd.OutOrStdout(), renderTokens(m.Projects(), filter))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderProjects(m.Projects(), filter, root))
	return nil
}

// renderProjects tables the projects the filter selects; a nil filter lists
// disabled projects too.
func renderProjects(projects []*manifest.Project, filter *manifest.Filter, root string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PATH", "REMOTE", "FLAGS", "MIRROR").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, p := range projects {
		if filter != nil && !filter.Selected(p) {
			continue
		}
		t.Row(p.LocalPath(), p.RemotePath(), strings.Join(p.Flags(), ","), mirrorState(mirror.Open(root, p.LocalPath())))
	}
	return t.String()
}

// mirrorState describes a mirror for the MIRROR column, including the client
// spec recorded when it was cloned.
func mirrorState(m *mirror.Mirror) string {
	if !m.Exists() {
		return "missing"
	}
	client, err := m.Setting("client")
	switch {
	case err != nil:
		return "invalid"
	case client != "":
		return "present (client=" + client + ")"
	}
	return "present"
}

// renderTokens lists "<local path>\t<token>" lines for the projects the
// filter selects.
func renderTokens(projects []*manifest.Project, filter *manifest.Filter) string {
	var b strings.Builder
	for _, p := range projects {
		if filter != nil && !filter.Selected(p) {
			continue
		}
		fmt.Fprintf(&b, "%s\t%s\n", p.LocalPath(), p.Token())
	}
	return b.String()
}
