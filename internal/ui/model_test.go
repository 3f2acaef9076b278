package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chuckie/autopr/internal/app"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/session"
)

// stubWorkflow answers every step immediately.
type stubWorkflow struct {
	insp    app.Inspection
	diffErr error
	staged  bool
}

func (s *stubWorkflow) Options() app.Options { return app.Options{} }

func (s *stubWorkflow) Inspect(context.Context) (app.Inspection, error) { return s.insp, nil }

func (s *stubWorkflow) StageAll(context.Context) (app.Inspection, error) {
	s.staged = true
	insp := s.insp
	insp.Staged, insp.Unstaged = insp.Unstaged, nil
	return insp, nil
}

func (s *stubWorkflow) PreviewUnstaged(_ context.Context, insp app.Inspection) (domain.CachedDiff, error) {
	return domain.CachedDiff{Text: "+hello", Files: insp.Unstaged}, nil
}

func (s *stubWorkflow) Diff(context.Context, app.Inspection) (app.DiffPlan, error) {
	return app.DiffPlan{}, s.diffErr
}

func (s *stubWorkflow) Name(context.Context, app.DiffPlan) (app.Names, error) {
	return app.Names{}, nil
}

func (s *stubWorkflow) Mutate(context.Context, app.Inspection, app.DiffPlan, app.Names, func(string)) (string, error) {
	return "", nil
}

func (s *stubWorkflow) OpenPR(context.Context, string, app.DiffPlan, app.Names) (string, error) {
	return "", nil
}

func newTestModel(wf *stubWorkflow) (*Model, *session.Controller) {
	ctrl := session.New(context.Background(), session.Deps{Workflow: wf})
	return New(ctrl, time.Millisecond), ctrl
}

func key(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// pump runs cmd and feeds result messages back until none are left.
func pump(m *Model, cmd tea.Cmd) tea.Cmd {
	for cmd != nil {
		msg := cmd()
		r, ok := msg.(msgResult)
		if !ok {
			return cmd
		}
		_, cmd = m.Update(r)
	}
	return nil
}

func TestTabsWrapAround(t *testing.T) {
	m, _ := newTestModel(&stubWorkflow{})

	m.Update(key("left"))
	if m.tab != TabStatus {
		t.Errorf("left from Logs = %s, want Status", m.tab)
	}
	m.Update(key("right"))
	m.Update(key("right"))
	if m.tab != TabErrors {
		t.Errorf("tab = %s, want Errors", m.tab)
	}
	if !strings.Contains(m.View(), "No errors.") {
		t.Error("Errors tab not rendered")
	}
}

func TestStagingPromptAnsweredWithKeys(t *testing.T) {
	wf := &stubWorkflow{insp: app.Inspection{Branch: "main", Unstaged: []string{"a.txt"}}}
	m, ctrl := newTestModel(wf)

	pump(m, m.follow(ctrl.Begin()))
	if m.prompt == "" || ctrl.State() != session.Staging {
		t.Fatalf("prompt = %q, state = %s", m.prompt, ctrl.State())
	}
	if !strings.Contains(m.View(), "Stage all 1") {
		t.Error("prompt not shown")
	}

	m.tab = TabDetails
	if !strings.Contains(m.View(), "a.txt") {
		t.Error("details should preview the unstaged files")
	}

	_, cmd := m.Update(key("y"))
	pump(m, cmd)
	if !wf.staged {
		t.Error("answering y did not stage")
	}
	// both diffs are empty, so the session ends without changes
	if ctrl.Snapshot().Outcome != session.NoOp {
		t.Errorf("outcome = %s", ctrl.Snapshot().Outcome)
	}
}

func TestQuitKey(t *testing.T) {
	wf := &stubWorkflow{insp: app.Inspection{Branch: "main", Unstaged: []string{"a.txt"}}}
	m, ctrl := newTestModel(wf)
	pump(m, m.follow(ctrl.Begin()))

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit once nothing is running")
	}
	if ctrl.Snapshot().Outcome != session.Cancelled {
		t.Errorf("outcome = %s", ctrl.Snapshot().Outcome)
	}
}

func TestErrorTabBlinks(t *testing.T) {
	wf := &stubWorkflow{
		insp:    app.Inspection{Branch: "feature", Staged: []string{"a.txt"}},
		diffErr: domain.Wrap(domain.ErrDiffComputation, "diff", errors.New("boom")),
	}
	m, ctrl := newTestModel(wf)
	cmd := pump(m, m.follow(ctrl.Begin()))
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("a failed step should end the program")
	}

	m.Update(msgTick(time.Now()))
	if m.blink != errorBlinks || m.seenErrors != 1 {
		t.Fatalf("blink = %d, seen = %d", m.blink, m.seenErrors)
	}
	for i := 0; i < errorBlinks+2; i++ {
		m.Update(msgTick(time.Now()))
	}
	if m.blink != 0 {
		t.Errorf("blink = %d after countdown", m.blink)
	}
}

func TestClipLines(t *testing.T) {
	s := "1\n2\n3\n4"
	if got := clipLines(s, 2, true); got != "3\n4" {
		t.Errorf("tail = %q", got)
	}
	if got := clipLines(s, 2, false); got != "1\n2" {
		t.Errorf("head = %q", got)
	}
	if got := clipLines(s, 10, true); got != s {
		t.Errorf("short = %q", got)
	}
}
