package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/ports"
)

// FakeLLM is a counting fake LLM. Respond, when set, derives the naming from
// the input; otherwise Naming is returned. When Block is non-nil every call
// waits for it to close (or for ctx to end) before answering.
type FakeLLM struct {
	Naming  domain.Naming
	Respond func(ports.NamingInput) domain.Naming
	Errs    []error // consumed one per call before succeeding
	Block   chan struct{}
	Started chan struct{} // receives once per call, if non-nil

	mu     sync.Mutex
	calls  int
	inputs []ports.NamingInput
}

func (f *FakeLLM) SuggestNaming(ctx context.Context, input ports.NamingInput) (domain.Naming, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, input)
	var err error
	if len(f.Errs) > 0 {
		err, f.Errs = f.Errs[0], f.Errs[1:]
	}
	f.mu.Unlock()

	if f.Started != nil {
		select {
		case f.Started <- struct{}{}:
		default:
		}
	}
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return domain.Naming{}, domain.Wrap(domain.ErrCancelled, "fake llm", ctx.Err())
		}
	}
	if err != nil {
		return domain.Naming{}, err
	}
	if f.Respond != nil {
		return f.Respond(input), nil
	}
	return f.Naming, nil
}

// CallCount reports how many requests were made.
func (f *FakeLLM) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Inputs returns a copy of every request seen.
func (f *FakeLLM) Inputs() []ports.NamingInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.NamingInput(nil), f.inputs...)
}

// NamingByDiff answers with a distinct, valid naming per file set so tests can
// tell the commit naming apart from the PR naming.
func NamingByDiff(input ports.NamingInput) domain.Naming {
	slug := "change"
	if len(input.Files) > 0 {
		slug = strings.NewReplacer(".", "-", "/", "-", "_", "-").Replace(strings.Join(input.Files, "-"))
	}
	return domain.Naming{
		BranchName:        "feat/" + slug,
		CommitTitle:       "feat: update " + slug,
		CommitDescription: "files: " + strings.Join(input.Files, ", "),
	}
}

// FakeGitHub records forge interactions.
type FakeGitHub struct {
	Issues    string
	IssuesErr error
	OpenPR    bool
	URL       string
	CreateErr error

	mu             sync.Mutex
	issueLists     int
	issueWaits     int
	cancelledLists int
	created        []ports.PullRequest
	edited         []ports.PullRequest
}

type readyIssues struct {
	f   *FakeGitHub
	out string
	err error
}

func (r *readyIssues) Wait() (string, error) {
	r.f.mu.Lock()
	r.f.issueWaits++
	r.f.mu.Unlock()
	return r.out, r.err
}

func (r *readyIssues) Cancel() {
	r.f.mu.Lock()
	r.f.cancelledLists++
	r.f.mu.Unlock()
}

func (f *FakeGitHub) StartIssueList(ctx context.Context) (ports.PendingIssues, error) {
	f.mu.Lock()
	f.issueLists++
	f.mu.Unlock()
	out := f.Issues
	if out == "" {
		out = "[]"
	}
	return &readyIssues{f: f, out: out, err: f.IssuesErr}, nil
}

func (f *FakeGitHub) HasOpenPR(ctx context.Context, head string) (bool, error) {
	return f.OpenPR, nil
}

func (f *FakeGitHub) CreatePR(ctx context.Context, pr ports.PullRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.created = append(f.created, pr)
	return nil
}

func (f *FakeGitHub) EditPR(ctx context.Context, pr ports.PullRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, pr)
	return nil
}

func (f *FakeGitHub) PRURL(ctx context.Context, head string) (string, error) {
	if f.URL != "" {
		return f.URL, nil
	}
	return "https://github.com/example/repo/pull/1", nil
}

// Created returns the PRs opened so far.
func (f *FakeGitHub) Created() []ports.PullRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.PullRequest(nil), f.created...)
}

// Edited returns the PRs updated so far.
func (f *FakeGitHub) Edited() []ports.PullRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.PullRequest(nil), f.edited...)
}

// IssueWaits reports how many issue listings were waited for.
func (f *FakeGitHub) IssueWaits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueWaits
}

// CancelledLists reports how many issue listings were cancelled.
func (f *FakeGitHub) CancelledLists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelledLists
}

// IssueLists reports how many issue listings were started.
func (f *FakeGitHub) IssueLists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLists
}
