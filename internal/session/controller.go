package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/app"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
)

// DefaultCleanupTimeout bounds how long Cleanup waits for in-flight tasks.
const DefaultCleanupTimeout = 5 * time.Second

// Workflow is the set of repository steps a session drives.
type Workflow interface {
	Options() app.Options
	Inspect(ctx context.Context) (app.Inspection, error)
	StageAll(ctx context.Context) (app.Inspection, error)
	PreviewUnstaged(ctx context.Context, insp app.Inspection) (domain.CachedDiff, error)
	Diff(ctx context.Context, insp app.Inspection) (app.DiffPlan, error)
	Name(ctx context.Context, plan app.DiffPlan) (app.Names, error)
	Mutate(ctx context.Context, insp app.Inspection, plan app.DiffPlan, names app.Names, report func(string)) (string, error)
	OpenPR(ctx context.Context, head string, plan app.DiffPlan, names app.Names) (string, error)
}

// Terminal is the screen the session must hand back on exit.
type Terminal interface {
	Restore() error
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Workflow  Workflow
	Journal   *Journal
	Out       io.Writer   // receives the final report; nil discards it
	Releasers []io.Closer // closed during cleanup, e.g. the worktree manager
	LLMCalls  func() int
}

// Step tells the event loop what to do next. At most one field is set; the
// zero Step means wait for a result already running.
type Step struct {
	Run    func() Result // background work; feed its Result to Complete
	Prompt string        // ask a yes/no question and feed the answer to Answer
	Quit   bool          // stop the loop and call Cleanup
}

// Result is the outcome of a Step's Run.
type Result struct {
	gen   uint64
	err   error
	apply func() Step
}

// Snapshot is a consistent view of the session for rendering.
type Snapshot struct {
	State    State
	Outcome  Outcome
	Branch   string
	Base     string
	Steps    []string
	Commit   domain.Naming
	PR       domain.Naming
	Details  string
	URL      string
	Err      error
	LLMCalls int
	Prompt   string
}

// Controller owns the session state machine and every background task. All
// transitions happen under its lock; tasks only compute and hand back a
// Result whose effects Complete applies.
type Controller struct {
	deps Deps
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	history  []State
	gen      uint64
	outcome  Outcome
	err      error
	prompt   string
	terminal Terminal

	insp    app.Inspection
	details string
	plan    app.DiffPlan
	names   app.Names
	head    string
	url     string
	steps   []string

	tasks    sync.WaitGroup
	inflight atomic.Int32

	cleanupOnce    sync.Once
	cleanupTimeout time.Duration
	report         Report
}

// New creates a controller in Idle. Cancelling parent cancels every task.
func New(parent context.Context, deps Deps) *Controller {
	if deps.Journal == nil {
		deps.Journal = NewJournal()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	ctx, cancel := context.WithCancel(parent)
	return &Controller{
		deps:           deps,
		log:            observability.Component("session"),
		ctx:            ctx,
		cancel:         cancel,
		state:          Idle,
		history:        []State{Idle},
		cleanupTimeout: DefaultCleanupTimeout,
	}
}

// SetCleanupTimeout changes the bound on waiting for tasks during Cleanup.
func (c *Controller) SetCleanupTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupTimeout = d
}

// AttachTerminal registers the screen to restore during Cleanup.
func (c *Controller) AttachTerminal(t Terminal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminal = t
}

// Journal returns the session log.
func (c *Controller) Journal() *Journal {
	return c.deps.Journal
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns every state entered, in order.
func (c *Controller) History() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]State(nil), c.history...)
}

// Snapshot returns the data the UI renders.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:   c.state,
		Outcome: c.outcome,
		Branch:  c.insp.Branch,
		Base:    c.plan.Base.PRBase,
		Steps:   append([]string(nil), c.steps...),
		Commit:  c.names.Commit,
		PR:      c.names.PR,
		Details: c.details,
		URL:     c.url,
		Err:     c.err,
		Prompt:  c.prompt,
	}
	if c.deps.LLMCalls != nil {
		s.LLMCalls = c.deps.LLMCalls()
	}
	return s
}

// Begin starts the session by inspecting the repository.
func (c *Controller) Begin() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return Step{}
	}
	c.info("inspecting repository")
	return c.spawn(c.inspect)
}

// Complete applies a finished task. Results that arrive after the session
// moved on, or while it is cancelling, are discarded.
func (c *Controller) Complete(r Result) Step {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == CleanupRunning || c.state == Exited:
		return Step{}
	case c.state == Cancelling:
		return Step{Quit: c.inflight.Load() == 0}
	case r.gen != c.gen:
		c.log.Debug().Uint64("gen", r.gen).Uint64("current", c.gen).Msg("stale result discarded")
		return Step{}
	case r.err != nil:
		return c.fail(r.err)
	}
	return r.apply()
}

// Answer resolves the staging prompt.
func (c *Controller) Answer(yes bool) Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Staging || c.prompt == "" {
		return Step{}
	}
	c.prompt = ""
	if !yes {
		c.info("staging declined, nothing changed")
		return c.finish(NoOp)
	}
	c.info("staging all changes")
	return c.spawn(c.stage)
}

// Quit cancels the session. In-flight tasks are cancelled; the returned Step
// says Quit once none are left, otherwise Complete will.
func (c *Controller) Quit() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case CleanupRunning, Exited:
		return Step{}
	case Done:
		return Step{Quit: true}
	case Cancelling:
		return Step{Quit: c.inflight.Load() == 0}
	}
	c.outcome = Cancelled
	c.prompt = ""
	c.warn("cancelling")
	c.enter(Cancelling)
	c.cancel()
	return Step{Quit: c.inflight.Load() == 0}
}

// Cleanup awaits tasks (bounded), releases resources, restores the terminal
// and writes the final report. Only the first call has effects; later calls
// return the same report.
func (c *Controller) Cleanup() Report {
	c.cleanupOnce.Do(func() {
		c.mu.Lock()
		if c.outcome == Pending {
			c.outcome = Cancelled
		}
		c.prompt = ""
		c.enter(CleanupRunning)
		timeout := c.cleanupTimeout
		terminal := c.terminal
		c.mu.Unlock()

		c.cancel()
		if !c.waitTasks(timeout) {
			log := c.log
			log.Warn().Dur("timeout", timeout).Int32("tasks", c.inflight.Load()).Msg("tasks still running at cleanup")
		}

		var errs []error
		for _, r := range c.deps.Releasers {
			if err := r.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if terminal != nil {
			if err := terminal.Restore(); err != nil {
				errs = append(errs, fmt.Errorf("restore terminal: %w", err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			log := c.log
			log.Warn().Err(err).Msg("cleanup incomplete")
		}

		c.mu.Lock()
		c.report = Report{
			Outcome: c.outcome,
			Steps:   append([]string(nil), c.steps...),
			URL:     c.url,
			Err:     c.err,
		}
		if c.deps.LLMCalls != nil {
			c.report.LLMCalls = c.deps.LLMCalls()
		}
		c.enter(Exited)
		report := c.report
		c.mu.Unlock()

		log := c.log
		log.Info().
			Str("outcome", report.Outcome.String()).
			Strs("steps", report.Steps).
			Int("llm_calls", report.LLMCalls).
			Msg("session finished")
		_, _ = io.WriteString(c.deps.Out, report.String())
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

func (c *Controller) waitTasks(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// spawn registers a task. Must hold c.mu.
func (c *Controller) spawn(fn func(context.Context) Result) Step {
	gen := c.gen
	ctx := c.ctx
	c.tasks.Add(1)
	c.inflight.Add(1)
	return Step{Run: func() Result {
		defer c.tasks.Done()
		defer c.inflight.Add(-1)
		r := fn(ctx)
		r.gen = gen
		return r
	}}
}

// enter moves to s and invalidates results of earlier tasks. Must hold c.mu.
func (c *Controller) enter(s State) {
	if c.state == s {
		return
	}
	log := c.log
	log.Debug().Str("from", c.state.String()).Str("to", s.String()).Msg("transition")
	c.state = s
	c.gen++
	c.history = append(c.history, s)
}

// finish ends a session that ran to a normal end. Must hold c.mu.
func (c *Controller) finish(o Outcome) Step {
	c.outcome = o
	c.enter(Done)
	return Step{Quit: true}
}

// fail records a step error and cancels. Must hold c.mu.
func (c *Controller) fail(err error) Step {
	c.err = err
	if errors.Is(err, domain.ErrCancelled) || c.ctx.Err() != nil {
		c.outcome = Cancelled
		c.warn("cancelled: " + err.Error())
	} else {
		c.outcome = Failed
		c.deps.Journal.Report(domain.LevelError, err.Error())
	}
	c.enter(Cancelling)
	c.cancel()
	return Step{Quit: c.inflight.Load() == 0}
}

func (c *Controller) info(msg string) {
	c.deps.Journal.Report(domain.LevelInfo, msg)
}

func (c *Controller) warn(msg string) {
	c.deps.Journal.Report(domain.LevelWarn, msg)
}

// done records a completed side effect. Called from task goroutines.
func (c *Controller) done(msg string) {
	c.mu.Lock()
	c.steps = append(c.steps, msg)
	c.mu.Unlock()
	c.deps.Journal.Report(domain.LevelSuccess, msg)
}

func (c *Controller) inspect(ctx context.Context) Result {
	wf := c.deps.Workflow
	insp, err := wf.Inspect(ctx)
	if err != nil {
		return Result{err: err}
	}
	var preview domain.CachedDiff
	if len(insp.Staged) == 0 && len(insp.Unstaged) > 0 {
		if preview, err = wf.PreviewUnstaged(ctx, insp); err != nil {
			return Result{err: err}
		}
	}

	return Result{apply: func() Step {
		c.insp = insp
		c.info(fmt.Sprintf("on branch %s (%d staged, %d unstaged)", insp.Branch, len(insp.Staged), len(insp.Unstaged)))
		switch {
		case len(insp.Staged) > 0:
			return c.toDiffing()
		case len(insp.Unstaged) > 0:
			c.enter(Staging)
			c.details = "Unstaged:\n  " + strings.Join(insp.Unstaged, "\n  ") + "\n\n" + preview.Text
			c.prompt = fmt.Sprintf("Nothing is staged. Stage all %d changed file(s)? (y/n)", len(insp.Unstaged))
			return Step{Prompt: c.prompt}
		case insp.OnDefault:
			c.info("working tree clean on " + insp.Branch + ", nothing to do")
			return c.finish(NoOp)
		default:
			return c.toDiffing()
		}
	}}
}

func (c *Controller) stage(ctx context.Context) Result {
	insp, err := c.deps.Workflow.StageAll(ctx)
	if err != nil {
		return Result{err: err}
	}
	c.done(fmt.Sprintf("staged %d file(s)", len(insp.Staged)))
	return Result{apply: func() Step {
		c.insp = insp
		return c.toDiffing()
	}}
}

// toDiffing must hold c.mu.
func (c *Controller) toDiffing() Step {
	c.enter(Diffing)
	insp := c.insp
	return c.spawn(func(ctx context.Context) Result {
		plan, err := c.deps.Workflow.Diff(ctx, insp)
		if err != nil {
			return Result{err: err}
		}
		return Result{apply: func() Step {
			c.plan = plan
			if plan.Empty() {
				c.info("no changes against the base branch, nothing to do")
				return c.finish(NoOp)
			}
			c.details = detailsFor(plan)
			c.info(fmt.Sprintf("diffs ready: %d uncommitted, %d on branch", len(plan.Uncommitted.Files), len(plan.Branch.Files)))
			return c.toNaming()
		}}
	})
}

// toNaming must hold c.mu.
func (c *Controller) toNaming() Step {
	c.enter(Naming)
	plan := c.plan
	return c.spawn(func(ctx context.Context) Result {
		names, err := c.deps.Workflow.Name(ctx, plan)
		if err != nil {
			return Result{err: err}
		}
		return Result{apply: func() Step {
			c.names = names
			if names.Commit.CommitTitle != "" {
				c.info("commit: " + names.Commit.CommitTitle)
			}
			if names.PR.CommitTitle != "" {
				c.info("pull request: " + names.PR.CommitTitle)
			}
			return c.toMutating()
		}}
	})
}

// toMutating must hold c.mu.
func (c *Controller) toMutating() Step {
	c.enter(Mutating)
	insp, plan, names := c.insp, c.plan, c.names
	return c.spawn(func(ctx context.Context) Result {
		head, err := c.deps.Workflow.Mutate(ctx, insp, plan, names, c.done)
		if err != nil {
			return Result{err: err}
		}
		return Result{apply: func() Step {
			c.head = head
			return c.toPrCreation()
		}}
	})
}

// toPrCreation must hold c.mu.
func (c *Controller) toPrCreation() Step {
	c.enter(PrCreation)
	head, plan, names := c.head, c.plan, c.names
	verb := "opened"
	if c.deps.Workflow.Options().UpdatePR {
		verb = "updated"
	}
	return c.spawn(func(ctx context.Context) Result {
		url, err := c.deps.Workflow.OpenPR(ctx, head, plan, names)
		if err != nil {
			return Result{err: err}
		}
		c.done(verb + " pull request " + url)
		return Result{apply: func() Step {
			c.url = url
			return c.finish(Completed)
		}}
	})
}

func detailsFor(plan app.DiffPlan) string {
	var b strings.Builder
	if !plan.Uncommitted.Empty() {
		fmt.Fprintf(&b, "Uncommitted (%s)\n\n%s\n", plan.Uncommitted.Key, plan.Uncommitted.Text)
	}
	if plan.Branch.Key != plan.Uncommitted.Key && !plan.Branch.Empty() {
		fmt.Fprintf(&b, "Branch (%s)\n\n%s\n", plan.Branch.Key, plan.Branch.Text)
	}
	return b.String()
}
