// Package syncer runs a single synchronization attempt of one project: it
// prepares the project's mirror, launches git-p4 against it and turns the
// subprocess output into progress and a final outcome.
//
// A Task is driven by repeated calls to Update from a single goroutine. The
// only other goroutine involved is the one draining the subprocess output.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/depo/internal/errors"
	"github.com/Iron-Ham/depo/internal/logging"
	"github.com/Iron-Ham/depo/internal/manifest"
	"github.com/Iron-Ham/depo/internal/mirror"
	"github.com/Iron-Ham/depo/internal/util"
)

// ProgressMarker starts every line git-p4 prints per imported change.
const ProgressMarker = "Importing revision"

// prefixWidth is the column the status text starts at.
const prefixWidth = 40

// Options are shared by every task of a run.
type Options struct {
	// Root is the directory mirrors live under.
	Root string
	// User and Port are written into new mirrors for git-p4.
	User string
	Port string
	// Branch is the mirror branch advanced after a successful import
	// (default mirror.DefaultBranch).
	Branch string
	Runner Runner
	Logger *logging.Logger
}

// Task is one attempt at bringing a project's mirror up to date.
type Task struct {
	opts      Options
	project   *manifest.Project
	attempt   int
	lastError string
	mirror    *mirror.Mirror
	prefix    string
	logger    *logging.Logger

	cloning  bool
	baseline string
	queue    *lineQueue
	done     chan exitResult
	started  time.Time

	status     string
	imported   int
	newCommits int
	err        error
	completed  bool
	succeeded  bool
	reportable bool
}

// NewTask creates attempt number attempt (0 for the first) for project.
// lastError is the error text of the previous attempt, if any.
func NewTask(opts Options, project *manifest.Project, attempt int, lastError string) *Task {
	if opts.Branch == "" {
		opts.Branch = mirror.DefaultBranch
	}
	if opts.Runner == nil {
		opts.Runner = NewExecRunner()
	}
	path := project.LocalPath()
	return &Task{
		opts:      opts,
		project:   project,
		attempt:   attempt,
		lastError: lastError,
		mirror:    mirror.Open(opts.Root, path),
		prefix:    util.PadRight("project: "+path, prefixWidth, '.'),
		logger:    opts.Logger.WithProject(path).With("attempt", attempt),
		status:    "starting",
	}
}

// Run prepares the mirror and launches the import. A setup failure
// completes the task unsuccessfully before Run returns.
func (t *Task) Run(ctx context.Context) {
	t.started = time.Now()
	t.cloning = !t.mirror.Exists()

	if !t.cloning {
		base, err := t.mirror.TrackingRev()
		switch {
		case errors.Is(err, errors.ErrRefNotFound), errors.Is(err, errors.ErrNotMirror):
			// an earlier clone never finished its first import, or the
			// directory was never a repository
			t.logger.Warn("mirror has no imported history, cloning again", "mirror", t.mirror.Dir(), "error", err.Error())
			if err := t.mirror.Remove(); err != nil {
				t.fail(errors.NewTaskError("failed to remove incomplete mirror", errors.ErrTaskSetup).WithOutput(err.Error()))
				return
			}
			t.cloning = true
		case err != nil:
			t.fail(errors.NewTaskError("failed to read tracking ref", errors.ErrTaskSetup).WithOutput(err.Error()))
			return
		default:
			t.baseline = base
		}
	}

	args := []string{"p4", "sync"}
	if t.cloning {
		settings := mirror.Settings{User: t.opts.User, Port: t.opts.Port, Client: t.project.ClientSpec}
		if err := t.mirror.Init(settings); err != nil {
			t.fail(errors.NewTaskError("failed to initialize mirror", errors.ErrTaskSetup).WithOutput(err.Error()))
			return
		}
		depotPath := t.project.RemotePath()
		if !t.project.Binary {
			depotPath += "@all"
		}
		args = append(args, depotPath)
	}

	proc, err := t.opts.Runner.Start(ctx, t.mirror.Dir(), args...)
	if err != nil {
		t.fail(errors.NewTaskError("failed to start git p4", errors.ErrTaskSetup).WithOutput(err.Error()))
		return
	}

	t.queue = &lineQueue{}
	t.done = make(chan exitResult, 1)
	go drain(proc, t.queue, t.done)

	t.status = t.operation() + "..."
	t.logger.Info("import started", "cloning", t.cloning, "args", strings.Join(args, " "))
}

// Update advances the task, waiting at most poll for the subprocess to exit.
func (t *Task) Update(poll time.Duration) {
	if t.completed || t.done == nil {
		return
	}

	var (
		res    exitResult
		exited bool
	)
	if poll <= 0 {
		select {
		case res = <-t.done:
			exited = true
		default:
		}
	} else {
		timer := time.NewTimer(poll)
		select {
		case res = <-t.done:
			exited = true
		case <-timer.C:
		}
		timer.Stop()
	}

	t.consumeProgress()
	if exited {
		t.finish(res)
	}
}

// consumeProgress reads every queued line and records progress markers.
func (t *Task) consumeProgress() {
	for _, line := range t.queue.drain() {
		if strings.HasPrefix(line, ProgressMarker) {
			t.imported++
			t.status = t.operation() + "... " + strings.TrimSpace(line)
		}
	}
}

func (t *Task) finish(res exitResult) {
	if res.err != nil {
		output := strings.TrimSpace(strings.Join(nonEmpty(res.stdout, res.stderr), "\n"))
		t.fail(errors.NewTaskError(fmt.Sprintf("git p4 sync exited: %v", res.err), errors.ErrImportFailed).
			WithOutput(output))
		return
	}

	tip, err := t.mirror.PublishBranch(t.opts.Branch)
	if err != nil {
		t.fail(errors.NewTaskError("failed to advance "+t.opts.Branch, errors.ErrImportFailed).WithOutput(err.Error()))
		return
	}

	t.status = t.operation() + "... DONE"
	if t.cloning {
		t.reportable = true
	} else {
		n, err := t.mirror.CountCommits(t.baseline, tip)
		if err != nil {
			t.fail(errors.NewTaskError("failed to count imported commits", errors.ErrImportFailed).WithOutput(err.Error()))
			return
		}
		t.newCommits = n
		if n > 0 {
			t.status += fmt.Sprintf(" (%d)", n)
			t.reportable = true
		}
	}
	t.completed = true
	t.succeeded = true
	t.logger.Info("import finished",
		"cloning", t.cloning,
		"new_commits", t.newCommits,
		"imported", t.imported,
		"duration", time.Since(t.started).String(),
		"tip", tip,
	)
}

// fail completes the task unsuccessfully. A clone that failed leaves no
// mirror behind so the next attempt clones from scratch.
func (t *Task) fail(err *errors.TaskError) {
	t.err = err.WithProject(t.project.LocalPath()).WithAttempt(t.attempt)
	t.completed = true
	t.succeeded = false
	t.status = t.operation() + "... FAILED"

	t.logger.Warn("import failed", "error", t.err.Error())

	if t.cloning && t.mirror.Exists() {
		if rmErr := t.mirror.Remove(); rmErr != nil {
			t.logger.Error("failed to remove partial mirror", "error", rmErr.Error())
		}
	}
}

func (t *Task) operation() string {
	op := "fetching"
	if t.cloning {
		op = "cloning"
	}
	if t.attempt != 0 {
		op += fmt.Sprintf(" (tries=%d)", t.attempt)
	}
	return op
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// Project returns the project being synchronized.
func (t *Task) Project() *manifest.Project { return t.project }

// Prefix returns the dot-padded "project: <path>" label.
func (t *Task) Prefix() string { return t.prefix }

// Status returns the current human-readable status.
func (t *Task) Status() string { return t.status }

// Attempt returns the attempt number, 0 for the first.
func (t *Task) Attempt() int { return t.attempt }

// Completed reports whether the attempt has finished.
func (t *Task) Completed() bool { return t.completed }

// Succeeded reports whether the attempt finished successfully.
func (t *Task) Succeeded() bool { return t.succeeded }

// Reportable reports whether the outcome is worth showing: a fresh clone, or
// a fetch that imported new commits.
func (t *Task) Reportable() bool { return t.reportable }

// Cloning reports whether the attempt is a first-time clone.
func (t *Task) Cloning() bool { return t.cloning }

// Imported returns how many progress markers have been seen.
func (t *Task) Imported() int { return t.imported }

// NewCommits returns how many commits a successful fetch imported.
func (t *Task) NewCommits() int { return t.newCommits }

// Err returns the failure of this attempt, or nil.
func (t *Task) Err() error { return t.err }

// ErrorText returns the failure text of this attempt, or the one carried
// over from the previous attempt while this one has not failed.
func (t *Task) ErrorText() string {
	if t.err != nil {
		return t.err.Error()
	}
	return t.lastError
}
