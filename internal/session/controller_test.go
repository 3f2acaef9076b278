package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/chuckie/autopr/internal/adapters/git"
	"github.com/chuckie/autopr/internal/adapters/process"
	"github.com/chuckie/autopr/internal/app"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/testutil"
)

type fakeTerminal struct {
	mu       sync.Mutex
	restores int
}

func (f *fakeTerminal) Restore() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores++
	return nil
}

func (f *fakeTerminal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restores
}

type fixture struct {
	tr       *testutil.TestRepo
	llm      *testutil.FakeLLM
	github   *testutil.FakeGitHub
	app      *app.App
	ctrl     *Controller
	terminal *fakeTerminal
	out      *bytes.Buffer
}

func newFixture(t *testing.T, tr *testutil.TestRepo, llm *testutil.FakeLLM) *fixture {
	t.Helper()
	repo, err := git.Open(context.Background(), process.NewRunner(), tr.Dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	f := &fixture{
		tr:       tr,
		llm:      llm,
		github:   &testutil.FakeGitHub{},
		terminal: &fakeTerminal{},
		out:      &bytes.Buffer{},
	}
	settings := app.Settings{DiffCap: 200 * 1024, IssuesCap: 16 * 1024, Redact: true}
	f.app = app.New(repo, f.github, llm, settings, app.Options{})
	f.ctrl = New(context.Background(), Deps{
		Workflow:  f.app.Workflow,
		Journal:   NewJournal(),
		Out:       f.out,
		Releasers: []io.Closer{f.app},
		LLMCalls:  f.app.Naming.Calls,
	})
	f.ctrl.AttachTerminal(f.terminal)
	t.Cleanup(func() { f.ctrl.Cleanup() })
	return f
}

// drive runs steps synchronously, answering prompts from answers, until the
// controller asks to quit.
func drive(t *testing.T, c *Controller, step Step, answers ...bool) {
	t.Helper()
	for i := 0; i < 50; i++ {
		switch {
		case step.Quit:
			return
		case step.Run != nil:
			step = c.Complete(step.Run())
		case step.Prompt != "":
			if len(answers) == 0 {
				t.Fatalf("unexpected prompt %q", step.Prompt)
			}
			step = c.Answer(answers[0])
			answers = answers[1:]
		default:
			t.Fatalf("session stalled in %s", c.State())
		}
	}
	t.Fatal("session did not finish")
}

func TestSessionCompletes(t *testing.T) {
	tr := testutil.NewTestRepo(t)
	tr.AddRemote()
	tr.WriteFile("hello.go", "package hello\n")
	f := newFixture(t, tr, &testutil.FakeLLM{Respond: testutil.NamingByDiff})

	drive(t, f.ctrl, f.ctrl.Begin(), true)
	report := f.ctrl.Cleanup()

	if report.Outcome != Completed || report.ExitCode() != 0 {
		t.Fatalf("report = %+v", report)
	}
	want := []State{Idle, Staging, Diffing, Naming, Mutating, PrCreation, Done, CleanupRunning, Exited}
	if got := f.ctrl.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}
	if len(report.Steps) != 5 {
		t.Fatalf("steps = %v", report.Steps)
	}
	for i, prefix := range []string{"staged 1 file", "created branch feat/hello-go", "committed", "pushed feat/hello-go", "opened pull request https://"} {
		if !strings.HasPrefix(report.Steps[i], prefix) {
			t.Errorf("step %d = %q, want prefix %q", i, report.Steps[i], prefix)
		}
	}
	if report.LLMCalls != 1 {
		t.Errorf("LLM calls = %d, want 1", report.LLMCalls)
	}
	if !strings.Contains(f.out.String(), report.URL) {
		t.Errorf("final report not written: %q", f.out.String())
	}
	if f.terminal.count() != 1 {
		t.Errorf("terminal restored %d times", f.terminal.count())
	}
	if f.app.Worktrees.Open() != 0 {
		t.Error("worktrees left open")
	}
}

func TestSessionDeclinedStagingIsNoOp(t *testing.T) {
	tr := testutil.NewTestRepo(t)
	tr.AddRemote()
	tr.WriteFile("hello.go", "package hello\n")
	f := newFixture(t, tr, &testutil.FakeLLM{Respond: testutil.NamingByDiff})
	head := tr.Git("rev-parse", "HEAD")

	step := f.ctrl.Begin()
	step = f.ctrl.Complete(step.Run())
	if step.Prompt == "" {
		t.Fatalf("expected staging prompt, got %+v", step)
	}
	if snap := f.ctrl.Snapshot(); !strings.Contains(snap.Details, "hello.go") {
		t.Errorf("details = %q", snap.Details)
	}
	drive(t, f.ctrl, step, false)
	report := f.ctrl.Cleanup()

	if report.Outcome != NoOp || report.ExitCode() != 0 || len(report.Steps) != 0 {
		t.Errorf("report = %+v", report)
	}
	want := []State{Idle, Staging, Done, CleanupRunning, Exited}
	if got := f.ctrl.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}
	if tr.Git("rev-parse", "HEAD") != head || tr.Git("diff", "--cached", "--name-only") != "" {
		t.Error("declined staging changed the repository")
	}
	if f.llm.CallCount() != 0 {
		t.Errorf("LLM calls = %d", f.llm.CallCount())
	}
}

func TestSessionCleanOnDefaultIsNoOp(t *testing.T) {
	tr := testutil.NewTestRepo(t)
	tr.AddRemote()
	f := newFixture(t, tr, &testutil.FakeLLM{Respond: testutil.NamingByDiff})

	drive(t, f.ctrl, f.ctrl.Begin())
	if report := f.ctrl.Cleanup(); report.Outcome != NoOp {
		t.Errorf("outcome = %s", report.Outcome)
	}
}

func TestSessionCancelDuringNaming(t *testing.T) {
	tr := testutil.NewTestRepo(t)
	tr.AddRemote()
	tr.WriteFile("hello.go", "package hello\n")
	tr.Git("add", "hello.go")
	llm := &testutil.FakeLLM{Respond: testutil.NamingByDiff, Block: make(chan struct{}), Started: make(chan struct{}, 1)}
	f := newFixture(t, tr, llm)
	head := tr.Git("rev-parse", "HEAD")

	step := f.ctrl.Begin()
	for f.ctrl.State() != Naming {
		if step.Run == nil {
			t.Fatalf("stalled in %s", f.ctrl.State())
		}
		step = f.ctrl.Complete(step.Run())
	}

	results := make(chan Result, 1)
	go func() { results <- step.Run() }()
	<-llm.Started

	if q := f.ctrl.Quit(); q.Quit {
		t.Fatal("Quit() must wait for the in-flight naming task")
	}
	if next := f.ctrl.Complete(<-results); !next.Quit {
		t.Fatalf("Complete() after cancel = %+v, want Quit", next)
	}
	report := f.ctrl.Cleanup()

	if report.Outcome != Cancelled || report.ExitCode() != 130 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Steps) != 0 {
		t.Errorf("steps = %v", report.Steps)
	}
	if tr.Git("rev-parse", "HEAD") != head || tr.Git("rev-parse", "--abbrev-ref", "HEAD") != "main" {
		t.Error("cancelled session mutated the repository")
	}
	if len(f.github.Created()) != 0 {
		t.Error("cancelled session opened a PR")
	}
	f.ctrl.Cleanup()
	if f.terminal.count() != 1 {
		t.Errorf("terminal restored %d times, want 1", f.terminal.count())
	}
	if got := f.ctrl.History(); got[len(got)-1] != Exited || got[len(got)-3] != Cancelling {
		t.Errorf("history = %v", got)
	}
}

func TestSessionFailure(t *testing.T) {
	tr := testutil.NewTestRepo(t)
	tr.AddRemote()
	tr.WriteFile("hello.go", "package hello\n")
	tr.Git("add", "hello.go")
	llm := &testutil.FakeLLM{Errs: []error{errors.New("401 unauthorized")}}
	f := newFixture(t, tr, llm)

	drive(t, f.ctrl, f.ctrl.Begin())
	report := f.ctrl.Cleanup()

	if report.Outcome != Failed || report.ExitCode() != 1 {
		t.Fatalf("report = %+v", report)
	}
	if !errors.Is(report.Err, domain.ErrLLMRequest) {
		t.Errorf("err = %v, want ErrLLMRequest", report.Err)
	}
	if f.ctrl.Journal().ErrorCount() != 1 {
		t.Errorf("journal errors = %d", f.ctrl.Journal().ErrorCount())
	}
	if !strings.Contains(f.out.String(), "failed") {
		t.Errorf("report output = %q", f.out.String())
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	tr := testutil.NewTestRepo(t)
	f := newFixture(t, tr, &testutil.FakeLLM{Respond: testutil.NamingByDiff})

	step := f.ctrl.Begin()
	if again := f.ctrl.Begin(); again.Run != nil {
		t.Error("Begin() twice must not start a second task")
	}
	f.ctrl.Quit()
	r := step.Run()
	if next := f.ctrl.Complete(r); !next.Quit {
		t.Errorf("Complete() = %+v, want Quit", next)
	}
	if s := f.ctrl.Snapshot(); s.Branch != "" {
		t.Errorf("result applied after cancel: %+v", s)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	tr := testutil.NewTestRepo(t)
	f := newFixture(t, tr, &testutil.FakeLLM{})

	first := f.ctrl.Cleanup()
	printed := f.out.String()
	second := f.ctrl.Cleanup()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ: %+v vs %+v", first, second)
	}
	if first.Outcome != Cancelled {
		t.Errorf("cleanup before any step = %s, want cancelled", first.Outcome)
	}
	if f.out.String() != printed {
		t.Error("second Cleanup() wrote again")
	}
	if f.terminal.count() != 1 {
		t.Errorf("terminal restored %d times", f.terminal.count())
	}
	if f.ctrl.State() != Exited {
		t.Errorf("state = %s", f.ctrl.State())
	}
	if step := f.ctrl.Quit(); step.Quit || step.Run != nil {
		t.Errorf("Quit() after cleanup = %+v", step)
	}
}
