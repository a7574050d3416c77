// Package mirror manages the bare git repositories that hold each project's
// imported Perforce history.
//
// A mirror lives at <root>/<localPath>.git. git-p4 advances TrackingRef on
// every import; depo then points the mirror's default branch at the same
// commit so downstream consumers only ever see fully imported history.
package mirror

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/Iron-Ham/depo/internal/errors"
)

const (
	// TrackingRef is the ref git-p4 advances with imported history.
	TrackingRef = plumbing.ReferenceName("refs/remotes/p4/master")
	// DefaultBranch is the branch advanced to TrackingRef after each import.
	DefaultBranch = "master"
	// Suffix is appended to a project's local path to form its mirror directory.
	Suffix = ".git"
)

const p4Section = "git-p4"

// Settings are written into the git-p4 section of a new mirror's config.
type Settings struct {
	User string
	Port string
	// Client binds the mirror to a named Perforce client spec.
	Client string
}

// Mirror is the bare repository of a single project.
type Mirror struct {
	dir string
}

// Path returns the mirror directory for a slash-separated local path.
func Path(root, localPath string) string {
	return filepath.Join(root, filepath.FromSlash(localPath)+Suffix)
}

// Open returns the mirror of localPath under root. The repository need not
// exist yet.
func Open(root, localPath string) *Mirror {
	return &Mirror{dir: Path(root, localPath)}
}

// Dir returns the absolute or root-relative mirror directory.
func (m *Mirror) Dir() string {
	return m.dir
}

// Exists reports whether the mirror directory is present.
func (m *Mirror) Exists() bool {
	info, err := os.Stat(m.dir)
	return err == nil && info.IsDir()
}

// Init creates the mirror directory, initializes a bare repository in it and
// records the git-p4 settings.
func (m *Mirror) Init(s Settings) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return m.wrap("failed to create mirror directory", err)
	}

	repo, err := git.PlainInit(m.dir, true)
	if err != nil {
		return m.wrap("failed to initialize bare repository", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return m.wrap("failed to read repository config", err)
	}
	section := cfg.Raw.Section(p4Section)
	if s.User != "" {
		section.SetOption("user", s.User)
	}
	if s.Port != "" {
		section.SetOption("port", s.Port)
	}
	if s.Client != "" {
		section.SetOption("client", s.Client)
		section.SetOption("useClientSpec", "true")
	}
	if err := repo.Storer.SetConfig(cfg); err != nil {
		return m.wrap("failed to write repository config", err)
	}
	return nil
}

// Setting returns a value from the mirror's git-p4 config section.
func (m *Mirror) Setting(key string) (string, error) {
	repo, err := m.open()
	if err != nil {
		return "", err
	}
	cfg, err := repo.Config()
	if err != nil {
		return "", m.wrap("failed to read repository config", err)
	}
	return cfg.Raw.Section(p4Section).Option(key), nil
}

// Remove deletes the mirror directory and everything in it.
func (m *Mirror) Remove() error {
	if err := os.RemoveAll(m.dir); err != nil {
		return m.wrap("failed to remove mirror", err)
	}
	return nil
}

// TrackingRev returns the commit id TrackingRef points at.
func (m *Mirror) TrackingRev() (string, error) {
	return m.rev(TrackingRef)
}

// BranchRev returns the commit id of the named local branch.
func (m *Mirror) BranchRev(branch string) (string, error) {
	return m.rev(plumbing.NewBranchReferenceName(branch))
}

// PublishBranch points the named local branch at TrackingRef's commit and
// returns that commit id.
func (m *Mirror) PublishBranch(branch string) (string, error) {
	repo, err := m.open()
	if err != nil {
		return "", err
	}
	tip, err := m.resolve(repo, TrackingRef)
	if err != nil {
		return "", err
	}
	name := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(name, tip)); err != nil {
		return "", m.wrap("failed to update branch", err).WithRef(name.String())
	}
	return tip.String(), nil
}

// CountCommits returns how many commits lie between base and tip on the
// linear history git-p4 produces. An empty base counts the whole history.
func (m *Mirror) CountCommits(base, tip string) (int, error) {
	repo, err := m.open()
	if err != nil {
		return 0, err
	}
	if base == tip {
		return 0, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: plumbing.NewHash(tip)})
	if err != nil {
		return 0, m.wrap(fmt.Sprintf("failed to walk history from %s", tip), err)
	}
	defer iter.Close()

	baseHash := plumbing.NewHash(base)
	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if base != "" && c.Hash == baseHash {
			return storer.ErrStop
		}
		count++
		return nil
	})
	if err != nil {
		return 0, m.wrap("failed to count commits", err)
	}
	return count, nil
}

func (m *Mirror) rev(name plumbing.ReferenceName) (string, error) {
	repo, err := m.open()
	if err != nil {
		return "", err
	}
	hash, err := m.resolve(repo, name)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (m *Mirror) resolve(repo *git.Repository, name plumbing.ReferenceName) (plumbing.Hash, error) {
	ref, err := repo.Reference(name, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, errors.NewMirrorError("reference not found", errors.ErrRefNotFound).
				WithMirror(m.dir).WithRef(name.String())
		}
		return plumbing.ZeroHash, m.wrap("failed to resolve reference", err).WithRef(name.String())
	}
	return ref.Hash(), nil
}

func (m *Mirror) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(m.dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, errors.NewMirrorError("mirror does not exist", errors.ErrNotMirror).WithMirror(m.dir)
		}
		return nil, m.wrap("failed to open mirror", err)
	}
	return repo, nil
}

func (m *Mirror) wrap(message string, err error) *errors.MirrorError {
	return errors.NewMirrorError(message, err).WithMirror(m.dir)
}
