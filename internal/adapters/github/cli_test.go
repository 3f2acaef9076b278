package github

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/chuckie/autopr/internal/adapters/process"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/ports"
)

func TestIssueListing(t *testing.T) {
	tests := []struct {
		name    string
		res     process.Result
		want    string
		wantErr bool
	}{
		{
			name: "issues",
			res:  process.Result{Stdout: []byte(`[{"number":1,"title":"Bug","labels":[],"body":"x"}]` + "\n")},
			want: `[{"number":1,"title":"Bug","labels":[],"body":"x"}]`,
		},
		{
			name: "empty output",
			res:  process.Result{},
			want: "[]",
		},
		{
			name: "issues disabled",
			res:  process.Result{ExitCode: 1, Stderr: []byte("the 'o/r' repository has disabled issues")},
			want: "[]",
		},
		{
			name:    "auth failure",
			res:     process.Result{ExitCode: 4, Stderr: []byte("gh auth login required")},
			wantErr: true,
		},
		{
			name:    "garbage",
			res:     process.Result{Stdout: []byte("not json")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := process.NewMockRunner(nil)
			runner.OnPrefix("gh", []string{"issue", "list"}, tt.res)
			c := New(runner, "/repo")

			pending, err := c.StartIssueList(context.Background())
			if err != nil {
				t.Fatalf("StartIssueList() error = %v", err)
			}
			got, err := pending.Wait()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Wait() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Wait() = %q, want %q", got, tt.want)
			}
			if calls := runner.Calls(); len(calls) != 1 || calls[0].Dir != "/repo" {
				t.Errorf("calls = %+v", calls)
			}
		})
	}
}

func TestParseIssues(t *testing.T) {
	issues, err := ParseIssues(`[{"number":3,"title":"A"},{"number":5,"title":"B"}]`)
	if err != nil {
		t.Fatalf("ParseIssues() error = %v", err)
	}
	if want := []Issue{{3, "A"}, {5, "B"}}; !reflect.DeepEqual(issues, want) {
		t.Errorf("ParseIssues() = %+v", issues)
	}
}

func TestHasOpenPR(t *testing.T) {
	runner := process.NewMockRunner(nil)
	runner.OnPrefix("gh", []string{"pr", "list", "--state", "open", "--head", "feature/x"}, process.Result{Stdout: []byte(`[{"number":7}]`)})
	runner.OnPrefix("gh", []string{"pr", "list"}, process.Result{Stdout: []byte(`[]`)})
	c := New(runner, "/repo")

	if ok, err := c.HasOpenPR(context.Background(), "feature/x"); err != nil || !ok {
		t.Errorf("HasOpenPR(feature/x) = (%v, %v)", ok, err)
	}
	if ok, err := c.HasOpenPR(context.Background(), "other"); err != nil || ok {
		t.Errorf("HasOpenPR(other) = (%v, %v)", ok, err)
	}
}

func TestCreatePRArguments(t *testing.T) {
	runner := process.NewMockRunner(nil)
	c := New(runner, "/repo")

	err := c.CreatePR(context.Background(), ports.PullRequest{Head: "feature/x", Base: "main", Title: "feat: x", Body: "body", Draft: true})
	if err != nil {
		t.Fatalf("CreatePR() error = %v", err)
	}
	want := []string{"pr", "create", "--title", "feat: x", "--body", "body", "--assignee", "@me", "--head", "feature/x", "--base", "main", "--draft"}
	if got := runner.Calls()[0].Args; !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v\nwant %v", got, want)
	}

	err = c.CreatePR(context.Background(), ports.PullRequest{Head: "feature/y", Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("CreatePR() error = %v", err)
	}
	want = []string{"pr", "create", "--title", "t", "--body", "b", "--assignee", "@me", "--head", "feature/y"}
	if got := runner.Calls()[1].Args; !reflect.DeepEqual(got, want) {
		t.Errorf("args without base = %v\nwant %v", got, want)
	}
}

func TestCreatePRFailureIsTagged(t *testing.T) {
	runner := process.NewMockRunner(nil)
	runner.OnPrefix("gh", []string{"pr", "create"}, process.Result{ExitCode: 1, Stderr: []byte("a pull request already exists")})
	c := New(runner, "/repo")

	err := c.CreatePR(context.Background(), ports.PullRequest{Head: "h", Title: "t"})
	if !errors.Is(err, domain.ErrPRCreation) {
		t.Fatalf("CreatePR() error = %v, want ErrPRCreation", err)
	}
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) || exitErr.Stderr != "a pull request already exists" {
		t.Errorf("CreatePR() error lost stderr: %v", err)
	}
}

func TestEditPRAndURL(t *testing.T) {
	runner := process.NewMockRunner(nil)
	runner.OnPrefix("gh", []string{"pr", "view"}, process.Result{Stdout: []byte("https://github.com/o/r/pull/7\n")})
	c := New(runner, "/repo")

	if err := c.EditPR(context.Background(), ports.PullRequest{Head: "feature/x", Title: "t", Body: "b"}); err != nil {
		t.Fatalf("EditPR() error = %v", err)
	}
	want := []string{"pr", "edit", "feature/x", "--title", "t", "--body", "b", "--add-assignee", "@me"}
	if got := runner.Calls()[0].Args; !reflect.DeepEqual(got, want) {
		t.Errorf("edit args = %v", got)
	}

	url, err := c.PRURL(context.Background(), "feature/x")
	if err != nil || url != "https://github.com/o/r/pull/7" {
		t.Errorf("PRURL() = (%q, %v)", url, err)
	}
}
