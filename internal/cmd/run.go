package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/Iron-Ham/depo/internal/config"
	"github.com/Iron-Ham/depo/internal/errors"
	"github.com/Iron-Ham/depo/internal/gitcmd"
	"github.com/Iron-Ham/depo/internal/logging"
	"github.com/Iron-Ham/depo/internal/manifest"
	"github.com/Iron-Ham/depo/internal/orchestrator"
	"github.com/Iron-Ham/depo/internal/orchestrator/display"
	"github.com/Iron-Ham/depo/internal/orchestrator/retry"
	"github.com/Iron-Ham/depo/internal/publish"
	"github.com/Iron-Ham/depo/internal/runlock"
	"github.com/Iron-Ham/depo/internal/syncer"
	"github.com/Iron-Ham/depo/internal/watch"
)

// runOptions are the command-line choices of one invocation.
type runOptions struct {
	paths        []string
	downloadOnly bool
	uploadOnly   bool
	watch        bool
	prefix       string
}

// pipeline runs the sync and publish stages over the manifest. Nil
// collaborators are replaced with the real implementations.
type pipeline struct {
	cfg  *config.Config
	opts runOptions
	out  io.Writer

	runner syncer.Runner
	host   publish.ReviewHost
	remote publish.Remote
	logger *logging.Logger
}

func (p *pipeline) run(ctx context.Context) error {
	root, err := p.cfg.ResolveRoot()
	if err != nil {
		return errors.Wrap(err, "failed to resolve mirror root")
	}

	manifestFile := p.cfg.ResolveManifest()
	m, err := manifest.LoadFile(manifestFile)
	if err != nil {
		return err
	}
	if unknown := m.Lookup(p.opts.paths); len(unknown) > 0 {
		return errors.Wrapf(errors.ErrUnknownProject, "%s", strings.Join(unknown, ", "))
	}

	filter, err := manifest.NewFilter(p.cfg.Projects.Include, p.cfg.Projects.Exclude)
	if err != nil {
		return err
	}
	filter = filter.Only(p.opts.paths)

	lock := runlock.New(root)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	logger, err := p.openLogger(root)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	logger = logger.WithRun(uuid.NewString())
	logger.Info("run started",
		"root", root,
		"manifest", manifestFile,
		"projects", m.Len(),
		"download_only", p.opts.downloadOnly,
		"upload_only", p.opts.uploadOnly,
	)

	if !p.opts.watch {
		return p.pass(ctx, root, m, filter, logger)
	}
	return p.watchLoop(ctx, root, manifestFile, m, filter, logger)
}

// watchLoop runs passes until ctx is cancelled. Errors of a pass are
// reported and the loop keeps going; a manifest that no longer loads keeps
// the previous one in effect.
func (p *pipeline) watchLoop(ctx context.Context, root, manifestFile string, m *manifest.Manifest, filter *manifest.Filter, logger *logging.Logger) error {
	w, err := watch.New(manifestFile)
	if err != nil {
		return errors.Wrap(err, "failed to watch manifest")
	}
	defer func() { _ = w.Close() }()

	for pass := 1; ; pass++ {
		passLogger := logger.With("pass", pass)
		if err := p.pass(ctx, root, m, filter, passLogger); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			passLogger.Error("pass failed", "error", err.Error())
			fmt.Fprintf(p.out, "Error: %v\n", err)
		}

		reason, err := w.Wait(ctx, p.cfg.Sync.WatchInterval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to watch manifest")
		}
		logger.Info("starting next pass", "reason", reason.String())

		if reason == watch.Changed {
			reloaded, err := manifest.LoadFile(manifestFile)
			if err != nil {
				logger.Warn("manifest reload failed, keeping previous", "error", err.Error())
				fmt.Fprintf(p.out, "Manifest reload failed, keeping previous: %v\n", err)
				continue
			}
			m = reloaded
		}
	}
}

// pass runs one download and upload over the selected projects. Stuck
// projects do not prevent publishing the others; they are reported once the
// pass is over.
func (p *pipeline) pass(ctx context.Context, root string, m *manifest.Manifest, filter *manifest.Filter, logger *logging.Logger) error {
	projects := m.Projects()

	var stuck error
	if !p.opts.uploadOnly {
		res, err := p.download(ctx, root, projects, filter, logger)
		if err != nil {
			return err
		}
		if !res.OK() {
			stuck = errors.Wrapf(errors.ErrProjectStuck, "%s", strings.Join(res.Stuck, ", "))
		}
	}

	if !p.opts.downloadOnly {
		var selected []*manifest.Project
		for _, project := range projects {
			if filter.Selected(project) {
				selected = append(selected, project)
			}
		}
		if err := p.upload(ctx, root, selected, logger); err != nil {
			return errors.Join(err, stuck)
		}
	}
	return stuck
}

func (p *pipeline) download(ctx context.Context, root string, projects []*manifest.Project, filter *manifest.Filter, logger *logging.Logger) (*orchestrator.Result, error) {
	syncCfg := p.cfg.Sync
	sched := orchestrator.New(orchestrator.Config{
		Workers:      syncCfg.Workers,
		PollInterval: syncCfg.PollInterval(),
		Retry: retry.Policy{
			MaxRetries:   syncCfg.MaxRetries,
			InitialDelay: syncCfg.RetryInitial(),
			MaxDelay:     syncCfg.RetryMax(),
		},
		Task: syncer.Options{
			Root: root,
			User: p.cfg.P4.User,
			Port: p.cfg.P4.Port,
		},
	}, orchestrator.Deps{
		Runner:   p.runner,
		Renderer: display.NewRenderer(p.out, display.DefaultConfig()),
		Logger:   logger,
	})
	return sched.Run(ctx, projects, filter)
}

func (p *pipeline) upload(ctx context.Context, root string, projects []*manifest.Project, logger *logging.Logger) error {
	pub := p.cfg.Publish
	if pub.Host == "" {
		return errors.NewValidationError("publish.host must be set to publish; use --download-only to skip publishing").
			WithField("publish.host")
	}

	host := p.host
	if host == nil {
		opts := []publish.GerritOption{publish.WithTimeout(pub.Timeout)}
		if pub.Username != "" {
			opts = append(opts, publish.WithCredentials(pub.Username, pub.Password))
		}
		host = publish.NewGerritClient(pub.Host, opts...)
	}
	remote := p.remote
	if remote == nil {
		remote = gitcmd.NewRemote()
	}

	publisher := publish.New(publish.Config{
		PushURL:       pub.ResolvedPushURL(),
		ProjectPrefix: pub.ProjectPrefix,
		StripPrefix:   pub.StripPrefix,
		Branch:        pub.Branch,
		Parent:        pub.Parent,
		PathPrefix:    p.opts.prefix,
		Logger:        logger,
	}, host, remote, root)

	report, err := publisher.Publish(ctx, projects)
	if report != nil {
		printReport(p.out, report)
	}
	return err
}

func printReport(w io.Writer, r *publish.Report) {
	for _, id := range r.Pushed {
		fmt.Fprintf(w, "pushed %s\n", id)
	}
	for _, id := range r.Missing {
		fmt.Fprintf(w, "not synchronized, skipped %s\n", id)
	}
	fmt.Fprintf(w, "Published: %d created, %d pushed, %d up to date, %d missing\n",
		len(r.Created), len(r.Pushed), len(r.Skipped), len(r.Missing))
}

func (p *pipeline) openLogger(root string) (*logging.Logger, error) {
	if p.logger != nil {
		return p.logger, nil
	}
	if !p.cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLogger(p.cfg.ResolveLogDir(root), p.cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  p.cfg.Logging.MaxSizeMB,
		MaxBackups: p.cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open log")
	}
	return logger, nil
}
