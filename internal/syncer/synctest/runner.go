// Package synctest provides a scripted syncer.Runner that stands in for
// git-p4 in tests.
package synctest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/depo/internal/syncer"
	"github.com/Iron-Ham/depo/internal/testutil"
)

// Outcome scripts one invocation of the import subprocess.
type Outcome struct {
	// Lines are written to stdout, each terminated by Terminator.
	Lines []string
	// Terminator ends each line (default "\n").
	Terminator string
	// Stderr is reported once the process exits.
	Stderr string
	// Err is the exit error; nil means the import succeeded.
	Err error
	// StartErr makes Start itself fail.
	StartErr error
	// Commits is how many commits a successful import adds to the tracking
	// ref (default 1 when Err is nil).
	Commits int
	// NoCommits keeps a successful import from adding any commit.
	NoCommits bool
	// Hold keeps stdout open after Lines until it is closed.
	Hold chan struct{}
}

// Failure returns an outcome whose process exits non-zero.
func Failure(stderr string) Outcome {
	return Outcome{Err: fmt.Errorf("exit status 1"), Stderr: stderr}
}

// Call records one Start invocation.
type Call struct {
	Dir  string
	Args []string
}

// Runner is a scripted syncer.Runner. Outcomes are queued per mirror
// directory; an exhausted queue yields a successful single-commit import.
type Runner struct {
	t testing.TB

	mu     sync.Mutex
	script map[string][]Outcome
	calls  []Call
}

// NewRunner creates an empty scripted runner.
func NewRunner(t testing.TB) *Runner {
	return &Runner{t: t, script: map[string][]Outcome{}}
}

// Script queues outcomes for the mirror at dir.
func (r *Runner) Script(dir string, outcomes ...Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dir = filepath.Clean(dir)
	r.script[dir] = append(r.script[dir], outcomes...)
}

// Start implements syncer.Runner. A successful outcome's commits are written
// to the tracking ref before Start returns.
func (r *Runner) Start(_ context.Context, dir string, args ...string) (syncer.Process, error) {
	r.mu.Lock()
	dir = filepath.Clean(dir)
	r.calls = append(r.calls, Call{Dir: dir, Args: append([]string(nil), args...)})
	var out Outcome
	if queue := r.script[dir]; len(queue) > 0 {
		out, r.script[dir] = queue[0], queue[1:]
	}
	r.mu.Unlock()
	if out.StartErr != nil {
		return nil, out.StartErr
	}

	if out.Err == nil && !out.NoCommits {
		commits := out.Commits
		if commits == 0 {
			commits = 1
		}
		testutil.AddCommits(r.t, dir, testutil.TrackingRef, commits)
	}

	term := out.Terminator
	if term == "" {
		term = "\n"
	}
	var stdout strings.Builder
	for _, line := range out.Lines {
		stdout.WriteString(line + term)
	}
	return &process{
		stdout: &holdReader{r: strings.NewReader(stdout.String()), hold: out.Hold},
		stderr: out.Stderr,
		err:    out.Err,
	}, nil
}

// Calls returns every Start invocation so far.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsFor returns the Start invocations for the mirror at dir.
func (r *Runner) CallsFor(dir string) []Call {
	dir = filepath.Clean(dir)
	var out []Call
	for _, c := range r.Calls() {
		if c.Dir == dir {
			out = append(out, c)
		}
	}
	return out
}

type process struct {
	stdout io.Reader
	stderr string
	err    error
}

func (p *process) Stdout() io.Reader { return p.stdout }
func (p *process) Stderr() string    { return p.stderr }
func (p *process) Wait() error       { return p.err }

// holdReader returns EOF only after hold is closed.
type holdReader struct {
	r    io.Reader
	hold chan struct{}
}

func (h *holdReader) Read(b []byte) (int, error) {
	n, err := h.r.Read(b)
	if err == io.EOF && h.hold != nil {
		if n > 0 {
			return n, nil
		}
		<-h.hold
	}
	return n, err
}
