package syncer

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"
)

// Runner starts import subprocesses against a mirror.
type Runner interface {
	// Start launches `git -C dir <args...>` and returns the running process.
	Start(ctx context.Context, dir string, args ...string) (Process, error)
}

// Process is a started subprocess whose stdout must be read to EOF before
// Wait is called.
type Process interface {
	Stdout() io.Reader
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
	// Stderr returns everything the process wrote to stderr. It is complete
	// once Wait has returned.
	Stderr() string
}

// ExecRunner runs the git binary with os/exec.
type ExecRunner struct {
	// Binary is the git executable (default "git").
	Binary string
	// Env is appended to the inherited environment.
	Env []string
}

// NewExecRunner creates a runner for the git binary on PATH.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Binary: "git"}
}

// Start implements Runner.
func (r *ExecRunner) Start(ctx context.Context, dir string, args ...string) (Process, error) {
	binary := r.Binary
	if binary == "" {
		binary = "git"
	}
	cmd := exec.CommandContext(ctx, binary, append([]string{"-C", dir}, args...)...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	p := &execProcess{cmd: cmd, stdout: stdout}
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr lockedBuffer
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }
func (p *execProcess) Stderr() string    { return p.stderr.String() }

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// maxLineBytes bounds a single output line; longer lines end the scan and
// the rest of the stream is discarded.
const maxLineBytes = 1 << 20

// scanLines is a bufio.SplitFunc that ends lines at '\n' or '\r'. git-p4
// rewrites its progress line in place with carriage returns.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// exitResult is what the drain goroutine reports once the process is gone.
type exitResult struct {
	err    error
	stdout string
	stderr string
}

// drain copies proc's stdout into q line by line, then waits for the process
// and delivers its result on done. It is the only reader of proc.
func drain(proc Process, q *lineQueue, done chan<- exitResult) {
	tail := newTail(outputTailLines)

	sc := bufio.NewScanner(proc.Stdout())
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(scanLines)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		q.push(line)
		tail.add(line)
	}
	// keep the pipe from filling up if the scanner gave up early
	_, _ = io.Copy(io.Discard, proc.Stdout())

	err := proc.Wait()
	done <- exitResult{err: err, stdout: tail.String(), stderr: proc.Stderr()}
}
