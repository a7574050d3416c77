// Package publish republishes synchronized mirrors to a review host.
//
// For every selected project the Publisher makes sure the host knows the
// project, compares the mirror's branch with the host's and pushes when they
// differ. Projects are handled one at a time.
package publish

import (
	"context"
	"path"
	"strings"

	"github.com/Iron-Ham/depo/internal/errors"
	"github.com/Iron-Ham/depo/internal/logging"
	"github.com/Iron-Ham/depo/internal/manifest"
	"github.com/Iron-Ham/depo/internal/mirror"
)

// ReviewHost manages projects on the review host.
type ReviewHost interface {
	// ListProjects returns the identifiers of every host project whose name
	// starts with prefix.
	ListProjects(ctx context.Context, prefix string) ([]string, error)
	// CreateProject creates a project under parent. Creating a project that
	// already exists is not an error.
	CreateProject(ctx context.Context, name, parent string) error
}

// Remote reads and updates branches on the host's git endpoint.
type Remote interface {
	Tip(ctx context.Context, url, branch string) (string, error)
	Push(ctx context.Context, dir, url, rev, branch string) error
}

// Config configures a Publisher.
type Config struct {
	// PushURL is the git base URL; a project is pushed to PushURL/<id>.
	PushURL string
	// ProjectPrefix is prepended to every host-side identifier.
	ProjectPrefix string
	// StripPrefix is removed from a project's local path first.
	StripPrefix string
	// Branch is published from the mirror to the host (default "master").
	Branch string
	// Parent is the category new projects are created under.
	Parent string
	// PathPrefix limits publishing to projects whose local path is at or
	// below it.
	PathPrefix string
	Logger     *logging.Logger
}

// Report lists what a Publish call did, by host identifier.
type Report struct {
	Created []string
	Pushed  []string
	// Skipped projects were already up to date.
	Skipped []string
	// Missing projects have no synchronized mirror yet.
	Missing []string
}

// Publisher pushes mirrors to a review host.
type Publisher struct {
	cfg    Config
	host   ReviewHost
	remote Remote
	root   string
	logger *logging.Logger
}

// New creates a Publisher for the mirrors under root.
func New(cfg Config, host ReviewHost, remote Remote, root string) *Publisher {
	if cfg.Branch == "" {
		cfg.Branch = mirror.DefaultBranch
	}
	if cfg.Parent == "" {
		cfg.Parent = DefaultParent
	}
	return &Publisher{
		cfg:    cfg,
		host:   host,
		remote: remote,
		root:   root,
		logger: cfg.Logger.WithStage("publish"),
	}
}

// Identifier returns the host-side identifier of a project's local path.
func (p *Publisher) Identifier(localPath string) string {
	rel := localPath
	if strip := strings.Trim(p.cfg.StripPrefix, "/"); strip != "" {
		if rel == strip {
			rel = ""
		} else {
			rel = strings.TrimPrefix(rel, strip+"/")
		}
	}
	return strings.Trim(path.Join(p.cfg.ProjectPrefix, rel), "/")
}

// Publish publishes every enabled project under the path prefix. A failed
// push stops the run and is returned with the report so far.
func (p *Publisher) Publish(ctx context.Context, projects []*manifest.Project) (*Report, error) {
	report := &Report{}
	var known map[string]bool

	for _, project := range projects {
		if !p.eligible(project) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		local := project.LocalPath()
		id := p.Identifier(local)
		logger := p.logger.WithProject(local).With("id", id)

		m := mirror.Open(p.root, local)
		rev, err := m.BranchRev(p.cfg.Branch)
		if err != nil {
			logger.Warn("mirror not synchronized, not publishing", "error", err.Error())
			report.Missing = append(report.Missing, id)
			continue
		}

		if known == nil {
			names, err := p.host.ListProjects(ctx, p.cfg.ProjectPrefix)
			if err != nil {
				return report, err
			}
			known = make(map[string]bool, len(names))
			for _, name := range names {
				known[name] = true
			}
			p.logger.Debug("listed host projects", "count", len(names))
		}

		if !known[id] {
			if err := p.host.CreateProject(ctx, id, p.cfg.Parent); err != nil {
				return report, err
			}
			known[id] = true
			report.Created = append(report.Created, id)
			logger.Info("created host project", "parent", p.cfg.Parent)
		}

		url := p.projectURL(id)
		remoteRev, err := p.remote.Tip(ctx, url, p.cfg.Branch)
		if err != nil {
			logger.Debug("remote branch unreadable, pushing", "error", err.Error())
		} else if remoteRev == rev {
			report.Skipped = append(report.Skipped, id)
			logger.Debug("up to date", "rev", rev)
			continue
		}

		if err := p.remote.Push(ctx, m.Dir(), url, rev, p.cfg.Branch); err != nil {
			logger.Error("push failed", "error", err.Error())
			var pubErr *errors.PublishError
			if errors.As(err, &pubErr) {
				return report, pubErr.WithProject(id)
			}
			return report, errors.NewPublishError("push failed", errors.Join(errors.ErrPushFailed, err)).WithProject(id)
		}
		report.Pushed = append(report.Pushed, id)
		logger.Info("pushed", "rev", rev, "previous", remoteRev)
	}
	return report, nil
}

func (p *Publisher) eligible(project *manifest.Project) bool {
	if !project.Enabled {
		return false
	}
	prefix := strings.Trim(p.cfg.PathPrefix, "/")
	if prefix == "" {
		return true
	}
	local := project.LocalPath()
	return local == prefix || strings.HasPrefix(local, prefix+"/")
}

func (p *Publisher) projectURL(id string) string {
	return strings.TrimRight(p.cfg.PushURL, "/") + "/" + id
}
