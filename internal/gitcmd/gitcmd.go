// Package gitcmd runs the git CLI for the operations go-git cannot perform
// against a review host: reading a remote branch tip and pushing with push
// options.
package gitcmd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Iron-Ham/depo/internal/errors"
)

// -----------------------------------------------------------------------------
// Command Executor
// -----------------------------------------------------------------------------

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// -----------------------------------------------------------------------------
// Remote
// -----------------------------------------------------------------------------

// SkipValidationOption is the push option that tells the review host to skip
// its commit validation hooks.
const SkipValidationOption = "skip-validation"

// Remote talks to a review host's git endpoint.
type Remote struct {
	executor CommandExecutor
}

// NewRemote creates a Remote backed by the git binary.
func NewRemote() *Remote {
	return &Remote{executor: NewCLICommandExecutor()}
}

// NewRemoteWithExecutor creates a Remote with a custom executor.
// This is primarily useful for testing.
func NewRemoteWithExecutor(executor CommandExecutor) *Remote {
	return &Remote{executor: executor}
}

// Tip returns the commit id of refs/heads/<branch> at url. It fails when the
// branch does not exist or the remote cannot be read.
func (r *Remote) Tip(ctx context.Context, url, branch string) (string, error) {
	ref := "refs/heads/" + branch
	output, err := r.executor.Run(ctx, "", "git", "ls-remote", "--exit-code", url, ref)
	if err != nil {
		return "", errors.NewPublishError("failed to read remote branch", err).
			WithHost(url).
			WithProject(ref)
	}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == ref {
			return fields[0], nil
		}
	}
	return "", errors.NewPublishError(fmt.Sprintf("remote did not report %s", ref), errors.ErrRefNotFound).WithHost(url)
}

// Push pushes rev from the mirror at dir to refs/heads/<branch> at url,
// bypassing host-side validation.
func (r *Remote) Push(ctx context.Context, dir, url, rev, branch string) error {
	refspec := fmt.Sprintf("%s:refs/heads/%s", rev, branch)
	output, err := r.executor.Run(ctx, "", "git", "-C", dir, "push", "-o", SkipValidationOption, url, refspec)
	if err != nil {
		return errors.NewPublishError(
			fmt.Sprintf("git push failed: %s", strings.TrimSpace(string(output))),
			errors.Join(errors.ErrPushFailed, err),
		).WithHost(url)
	}
	return nil
}
