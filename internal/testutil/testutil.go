// Package testutil provides testing utilities for depo tests.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
)

// TrackingRef mirrors the ref git-p4 advances during an import.
const TrackingRef = "refs/remotes/p4/master"

// InitBare creates a bare repository at dir, creating parent directories as
// needed, and returns dir.
func InitBare(t testing.TB, dir string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	if _, err := git.PlainInit(dir, true); err != nil {
		t.Fatalf("failed to init bare repo: %v", err)
	}
	return dir
}

// AddCommits appends n empty commits on top of ref (starting a new history
// when ref does not exist yet) and returns the new tip.
func AddCommits(t testing.TB, dir, ref string, n int) string {
	t.Helper()

	repo := open(t, dir)
	name := plumbing.ReferenceName(ref)

	var parents []plumbing.Hash
	if existing, err := repo.Reference(name, true); err == nil {
		parents = []plumbing.Hash{existing.Hash()}
	}

	treeHash := storeObject(t, repo.Storer, &object.Tree{})
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tip := plumbing.ZeroHash
	for i := 0; i < n; i++ {
		sig := object.Signature{Name: "p4", Email: "p4@example.com", When: when.Add(time.Duration(i) * time.Minute)}
		commit := &object.Commit{
			Author:       sig,
			Committer:    sig,
			Message:      fmt.Sprintf("change %d\n", i+1),
			TreeHash:     treeHash,
			ParentHashes: parents,
		}
		tip = storeObject(t, repo.Storer, commit)
		parents = []plumbing.Hash{tip}
	}

	if n > 0 {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(name, tip)); err != nil {
			t.Fatalf("failed to set %s: %v", ref, err)
		}
	}
	return tip.String()
}

// Ref returns the commit id ref points at in the repository at dir, or ""
// when the ref does not exist.
func Ref(t testing.TB, dir, ref string) string {
	t.Helper()

	r, err := open(t, dir).Reference(plumbing.ReferenceName(ref), true)
	if err != nil {
		return ""
	}
	return r.Hash().String()
}

// SetRef points ref at the given commit id.
func SetRef(t testing.TB, dir, ref, hash string) {
	t.Helper()

	repo := open(t, dir)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.ReferenceName(ref), plumbing.NewHash(hash))); err != nil {
		t.Fatalf("failed to set %s: %v", ref, err)
	}
}

// RequireGit skips the test when the git binary is unavailable.
func RequireGit(t testing.TB) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// RunGit runs a git command in dir and fails the test on error.
func RunGit(t testing.TB, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=depo", "GIT_AUTHOR_EMAIL=depo@example.com",
		"GIT_COMMITTER_NAME=depo", "GIT_COMMITTER_EMAIL=depo@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v in %s failed: %v\n%s", args, filepath.Base(dir), err, out)
	}
	return string(out)
}

func open(t testing.TB, dir string) *git.Repository {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("failed to open %s: %v", dir, err)
	}
	return repo
}

type encoder interface {
	Encode(plumbing.EncodedObject) error
}

func storeObject(t testing.TB, s storage.Storer, obj encoder) plumbing.Hash {
	t.Helper()

	encoded := s.NewEncodedObject()
	if err := obj.Encode(encoded); err != nil {
		t.Fatalf("failed to encode object: %v", err)
	}
	hash, err := s.SetEncodedObject(encoded)
	if err != nil {
		t.Fatalf("failed to store object: %v", err)
	}
	return hash
}
