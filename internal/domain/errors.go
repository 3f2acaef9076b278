package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the workflow. Match them with errors.Is.
var (
	ErrRepositoryState  = errors.New("repository state error")
	ErrNoParentBranch   = errors.New("no parent branch found")
	ErrWorktreeCreation = errors.New("worktree creation failed")
	ErrDiffComputation  = errors.New("diff computation failed")
	ErrLLMRequest       = errors.New("llm request failed")
	ErrGitMutation      = errors.New("git mutation failed")
	ErrPRCreation       = errors.New("pr creation failed")

	// ErrCancelled marks a workflow stopped by the user.
	ErrCancelled = errors.New("cancelled")

	// ErrTransient marks failures worth one more attempt (rate limits,
	// timeouts, 5xx responses).
	ErrTransient = errors.New("transient failure")

	ErrBranchExists = errors.New("branch already exists")
)

// Wrap tags err with kind and the failing operation while keeping both
// reachable through errors.Is.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
