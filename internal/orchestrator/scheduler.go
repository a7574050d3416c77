// Package orchestrator schedules project synchronization.
//
// A Scheduler admits projects into a bounded set of in-flight syncer tasks,
// drives them from a single goroutine, retries failures in the same slot and
// keeps the live display current. It is the only writer of the display.
package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/Iron-Ham/depo/internal/errors"
	"github.com/Iron-Ham/depo/internal/logging"
	"github.com/Iron-Ham/depo/internal/manifest"
	"github.com/Iron-Ham/depo/internal/orchestrator/display"
	"github.com/Iron-Ham/depo/internal/orchestrator/retry"
	"github.com/Iron-Ham/depo/internal/syncer"
)

// DefaultWorkers is the number of concurrent imports when none is configured.
const DefaultWorkers = 8

// DefaultPollInterval bounds how long one tick waits for subprocesses.
const DefaultPollInterval = 100 * time.Millisecond

// Config configures a Scheduler.
type Config struct {
	Workers      int
	PollInterval time.Duration
	Retry        retry.Policy
	// Task is passed to every task; its Runner and Logger are overridden by
	// the scheduler's dependencies when those are set.
	Task syncer.Options
}

// Deps are the collaborators of a Scheduler. Every field is optional.
type Deps struct {
	Runner   syncer.Runner
	Renderer *display.Renderer
	Logger   *logging.Logger
}

// Result summarizes a run.
type Result struct {
	// Synced lists the projects that synchronized successfully.
	Synced []string
	// Reported lists the successful projects whose outcome was reportable.
	Reported []string
	// Stuck lists the projects that exhausted their retries.
	Stuck []string
	// Skipped counts projects left out by the filter.
	Skipped int
	// Attempts is the attempt number of each project's final task.
	Attempts map[string]int
	// MaxInFlight is the largest number of tasks running at once.
	MaxInFlight int
}

// OK reports whether no project got stuck.
func (r *Result) OK() bool {
	return len(r.Stuck) == 0
}

// slot is one place in the worker pool. A retry reuses the slot of the task
// it replaces and waits there until notBefore.
type slot struct {
	task      *syncer.Task
	started   bool
	notBefore time.Time
	status    string
}

// Scheduler runs sync tasks with bounded concurrency.
type Scheduler struct {
	cfg      Config
	renderer *display.Renderer
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a Scheduler.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if deps.Runner != nil {
		cfg.Task.Runner = deps.Runner
	}
	if deps.Logger != nil {
		cfg.Task.Logger = deps.Logger
	}
	return &Scheduler{
		cfg:      cfg,
		renderer: deps.Renderer,
		logger:   cfg.Task.Logger.WithStage("sync"),
		now:      time.Now,
	}
}

// run is the state of one Run call.
type run struct {
	s        *Scheduler
	ctx      context.Context
	pending  []*manifest.Project
	slots    []*slot
	filter   *manifest.Filter
	retries  *retry.Manager
	result   *Result
	total    int
	done     int
	finished []display.Entry
}

// Run synchronizes projects until every selected project has either
// succeeded or become stuck. Projects the filter does not select are skipped
// and not counted. Run returns early with the context's error when ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, projects []*manifest.Project, filter *manifest.Filter) (*Result, error) {
	pending := make([]*manifest.Project, len(projects))
	copy(pending, projects)
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].LocalPath() < pending[j].LocalPath()
	})

	r := &run{
		s:       s,
		ctx:     ctx,
		pending: pending,
		filter:  filter,
		retries: retry.NewManager(s.cfg.Retry),
		result:  &Result{Attempts: make(map[string]int)},
	}
	for _, p := range pending {
		if filter.Selected(p) {
			r.total++
		}
	}

	s.logger.Info("sync started",
		"projects", r.total,
		"workers", s.cfg.Workers,
		"max_retries", s.cfg.Retry.MaxRetries,
	)
	if s.renderer != nil {
		s.renderer.Begin()
	}

	for len(r.pending) > 0 || len(r.slots) > 0 {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("sync interrupted",
				"error", err.Error(),
				"processed", r.done,
				"total", r.total,
				"retrying", r.retries.GetRetryingTasks(),
			)
			return r.result, errors.Wrap(err, "sync interrupted")
		}

		changed := r.tick()
		if changed {
			r.draw()
		}
		r.idle()
	}

	r.result.Stuck = r.retries.GetStuckTasks()
	s.logger.Info("sync finished",
		"synced", len(r.result.Synced),
		"reported", len(r.result.Reported),
		"stuck", len(r.result.Stuck),
		"skipped", r.result.Skipped,
		"failures", r.failures(),
	)
	return r.result, nil
}

// tick advances every slot once and fills free slots. It reports whether
// anything visible changed.
func (r *run) tick() bool {
	changed := false
	deadline := r.s.now().Add(r.s.cfg.PollInterval)

	kept := r.slots[:0]
	for _, sl := range r.slots {
		if !sl.started {
			if r.s.now().Before(sl.notBefore) {
				kept = append(kept, sl)
				continue
			}
			r.start(sl)
			changed = true
		}

		if !sl.task.Completed() {
			wait := deadline.Sub(r.s.now())
			if wait < 0 {
				wait = 0
			}
			sl.task.Update(wait)
		}

		if !sl.task.Completed() {
			if status := sl.task.Status(); status != sl.status {
				sl.status = status
				changed = true
			}
			kept = append(kept, sl)
			continue
		}

		changed = true
		if sl.task.Succeeded() {
			r.succeed(sl.task)
			continue
		}
		if r.fail(sl) {
			kept = append(kept, sl)
		}
	}
	r.slots = kept

	for len(r.slots) < r.s.cfg.Workers && len(r.pending) > 0 {
		p := r.pending[0]
		r.pending = r.pending[1:]

		if !r.filter.Selected(p) {
			r.result.Skipped++
			r.s.logger.Debug("project skipped", "project", p.LocalPath(), "enabled", p.Enabled)
			continue
		}

		sl := &slot{task: syncer.NewTask(r.s.cfg.Task, p, 0, "")}
		r.start(sl)
		r.slots = append(r.slots, sl)
		changed = true
	}

	running := 0
	for _, sl := range r.slots {
		if sl.started && !sl.task.Completed() {
			running++
		}
	}
	if running > r.result.MaxInFlight {
		r.result.MaxInFlight = running
	}

	return changed
}

// failures counts the failed attempts of every project.
func (r *run) failures() int {
	n := 0
	for _, state := range r.retries.GetAllStates() {
		n += state.Failures
	}
	return n
}

func (r *run) start(sl *slot) {
	sl.started = true
	sl.task.Run(r.ctx)
	sl.status = sl.task.Status()
}

func (r *run) succeed(t *syncer.Task) {
	path := t.Project().LocalPath()
	r.retries.RecordSuccess(path)
	r.done++
	r.result.Synced = append(r.result.Synced, path)
	r.result.Attempts[path] = t.Attempt()
	r.s.logger.Info("project synced",
		"project", path,
		"attempts", t.Attempt()+1,
		"cloning", t.Cloning(),
		"imported", t.Imported(),
		"new_commits", t.NewCommits(),
	)
	if t.Reportable() {
		r.result.Reported = append(r.result.Reported, path)
		r.finished = append(r.finished, display.Entry{Prefix: t.Prefix(), Status: t.Status()})
	}
}

// fail records a failed attempt and reports whether the slot stays occupied
// by a retry.
func (r *run) fail(sl *slot) bool {
	t := sl.task
	path := t.Project().LocalPath()
	errText := t.ErrorText()
	r.result.Attempts[path] = t.Attempt()

	delay, stuck := r.retries.RecordFailure(path, errText)
	if stuck {
		r.done++
		r.s.logger.Error("project stuck",
			"project", path,
			"attempts", t.Attempt()+1,
			"cloning", t.Cloning(),
			"imported", t.Imported(),
			"error", errText,
		)
		r.finished = append(r.finished, display.Entry{
			Prefix: t.Prefix(),
			Status: t.Status(),
			Err:    errText,
			Failed: true,
			Stuck:  true,
		})
		return false
	}

	r.finished = append(r.finished, display.Entry{
		Prefix: t.Prefix(),
		Status: t.Status(),
		Err:    errText,
		Failed: true,
	})
	r.s.logger.Info("retrying project",
		"project", path,
		"attempt", t.Attempt()+1,
		"cloning", t.Cloning(),
		"imported", t.Imported(),
		"delay", delay.String(),
	)

	sl.task = syncer.NewTask(r.s.cfg.Task, t.Project(), t.Attempt()+1, errText)
	sl.started = false
	sl.notBefore = r.s.now().Add(delay)
	sl.status = sl.task.Status()
	if delay <= 0 {
		r.start(sl)
	}
	return true
}

func (r *run) draw() {
	finished := r.finished
	r.finished = nil
	if r.s.renderer == nil {
		return
	}

	live := make([]display.Entry, 0, len(r.slots))
	for _, sl := range r.slots {
		live = append(live, display.Entry{
			Prefix: sl.task.Prefix(),
			Status: sl.task.Status(),
			Err:    sl.task.ErrorText(),
		})
	}
	r.s.renderer.Draw(display.Frame{
		Completed: finished,
		Processed: r.done,
		Total:     r.total,
		Live:      live,
	})
}

// idle sleeps when no slot has a running task, until the earliest delayed
// retry is due or one poll interval has passed. Tasks that failed inside Run
// would otherwise be restarted in a tight loop.
func (r *run) idle() {
	if len(r.slots) == 0 {
		return
	}
	wait := r.s.cfg.PollInterval
	for _, sl := range r.slots {
		if sl.started && !sl.task.Completed() {
			return
		}
		if !sl.started {
			if d := sl.notBefore.Sub(r.s.now()); d < wait {
				wait = d
			}
		}
	}
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-r.ctx.Done():
	case <-timer.C:
	}
}
