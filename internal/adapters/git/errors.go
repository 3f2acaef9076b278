package git

import "errors"

var (
	// ErrNotRepository indicates the directory is not inside a work tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrDetachedHead indicates HEAD does not point at a branch.
	ErrDetachedHead = errors.New("HEAD is detached")

	// ErrNoCommits indicates the repository has no commits yet.
	ErrNoCommits = errors.New("repository has no commits")

	// ErrNoMergeBase indicates two commits share no history.
	ErrNoMergeBase = errors.New("no merge base")
)

// Error wraps a git command failure with context.
type Error struct {
	Op     string // operation that failed (e.g. "commit", "push")
	Cmd    string // git command that was run
	Output string // trimmed stderr
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return e.Op + ": " + e.Output
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
