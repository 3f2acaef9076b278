// Package github drives GitHub through the gh CLI.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/adapters/process"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
)

const issueFields = "number,title,labels,body"

// Issue is the subset of `gh issue list --json` the workflow inspects.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ParseIssues decodes an issue listing.
func ParseIssues(raw string) ([]Issue, error) {
	var issues []Issue
	if err := json.Unmarshal([]byte(raw), &issues); err != nil {
		return nil, fmt.Errorf("parse issue list: %w", err)
	}
	return issues, nil
}

// CLI implements ports.GitHub for the repository in dir.
type CLI struct {
	runner process.Runner
	dir    string
	log    zerolog.Logger
}

var _ ports.GitHub = (*CLI)(nil)

// New creates a gh-backed client running in dir.
func New(runner process.Runner, dir string) *CLI {
	return &CLI{runner: runner, dir: dir, log: observability.Component("github")}
}

func (c *CLI) command(args ...string) process.Command {
	return process.Command{Dir: c.dir, Name: "gh", Args: args}
}

func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := c.command(args...)
	res, err := c.runner.Run(ctx, cmd)
	c.log.Debug().Str("cmd", cmd.Name+" "+args[0]+" "+args[1]).Int("exit", res.ExitCode).Err(err).Msg("gh")
	if err != nil {
		return "", err
	}
	if err := res.Err(cmd); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

type issueListing struct {
	handle *process.Handle
	cmd    process.Command
}

// StartIssueList begins listing open issues in the background.
func (c *CLI) StartIssueList(ctx context.Context) (ports.PendingIssues, error) {
	cmd := c.command("issue", "list", "--state", "open", "--json", issueFields)
	h, err := c.runner.Start(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("gh issue list: %w", err)
	}
	return &issueListing{handle: h, cmd: cmd}, nil
}

// Wait returns the issue listing as a JSON array. Repositories with issues
// disabled yield "[]".
func (l *issueListing) Wait() (string, error) {
	res, err := l.handle.Wait()
	if err != nil {
		return "", fmt.Errorf("gh issue list: %w", err)
	}
	if !res.OK() {
		if strings.Contains(string(res.Stderr), "has disabled issues") {
			return "[]", nil
		}
		return "", res.Err(l.cmd)
	}
	raw := strings.TrimSpace(string(res.Stdout))
	if raw == "" {
		return "[]", nil
	}
	if _, err := ParseIssues(raw); err != nil {
		return "", err
	}
	return raw, nil
}

// Cancel stops the listing; Wait still has to be called.
func (l *issueListing) Cancel() {
	l.handle.Cancel()
}

// HasOpenPR reports whether head already has an open pull request.
func (c *CLI) HasOpenPR(ctx context.Context, head string) (bool, error) {
	out, err := c.run(ctx, "pr", "list", "--state", "open", "--head", head, "--json", "number")
	if err != nil {
		return false, fmt.Errorf("gh pr list failed: %w", err)
	}
	var prs []struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal([]byte(out), &prs); err != nil {
		return false, fmt.Errorf("failed to parse PR list: %w", err)
	}
	return len(prs) > 0, nil
}

// CreatePR opens a pull request assigned to the current user.
func (c *CLI) CreatePR(ctx context.Context, pr ports.PullRequest) error {
	args := []string{"pr", "create", "--title", pr.Title, "--body", pr.Body, "--assignee", "@me", "--head", pr.Head}
	if pr.Base != "" {
		args = append(args, "--base", pr.Base)
	}
	if pr.Draft {
		args = append(args, "--draft")
	}
	if _, err := c.run(ctx, args...); err != nil {
		return domain.Wrap(domain.ErrPRCreation, "gh pr create", err)
	}
	return nil
}

// EditPR rewrites the title and body of head's open pull request.
func (c *CLI) EditPR(ctx context.Context, pr ports.PullRequest) error {
	args := []string{"pr", "edit", pr.Head, "--title", pr.Title, "--body", pr.Body, "--add-assignee", "@me"}
	if _, err := c.run(ctx, args...); err != nil {
		return domain.Wrap(domain.ErrPRCreation, "gh pr edit", err)
	}
	return nil
}

// PRURL returns the web URL of head's pull request.
func (c *CLI) PRURL(ctx context.Context, head string) (string, error) {
	out, err := c.run(ctx, "pr", "view", head, "--json", "url", "--jq", ".url")
	if err != nil {
		return "", fmt.Errorf("gh pr view failed: %w", err)
	}
	return out, nil
}
