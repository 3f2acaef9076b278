package ports

import (
	"context"

	"github.com/chuckie/autopr/internal/domain"
)

// LLM is the interface for language model providers.
type LLM interface {
	SuggestNaming(ctx context.Context, input NamingInput) (domain.Naming, error)
}

// NamingInput is the input to LLM.SuggestNaming.
type NamingInput struct {
	Diff          string
	Files         []string
	Issues        string // JSON array from the issue tracker, possibly truncated
	What          string
	Why           string
	BiggerPicture string
	Model         string
	Temperature   float32
}

// Status summarises the working tree and index.
type Status struct {
	Staged   []string
	Unstaged []string
}

// HasStaged reports whether the index differs from HEAD.
func (s Status) HasStaged() bool { return len(s.Staged) > 0 }

// HasUnstaged reports modified or untracked files outside the index.
func (s Status) HasUnstaged() bool { return len(s.Unstaged) > 0 }

// DiffOptions selects what a diff compares.
type DiffOptions struct {
	Base   string // commit or tree-ish
	Head   string // commit; empty compares against the index or working tree
	Cached bool   // compare Base against the index
}

// Git is the interface for git operations, bound to one working directory.
type Git interface {
	Dir() string
	At(dir string) Git

	CurrentBranch(ctx context.Context) (string, error)
	DefaultBranch(ctx context.Context) (string, error)
	LocalBranches(ctx context.Context) ([]string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	ResolveCommit(ctx context.Context, rev string) (string, error)
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	CommitDistance(ctx context.Context, from, to string) (int, error)
	MergeBase(ctx context.Context, a, b string) (string, error)

	Status(ctx context.Context) (Status, error)
	IndexTree(ctx context.Context) (string, error)
	Diff(ctx context.Context, opts DiffOptions) (string, error)
	DiffNames(ctx context.Context, opts DiffOptions) ([]string, error)
	StagedPatch(ctx context.Context) ([]byte, error)
	ApplyToIndex(ctx context.Context, patch []byte) error

	StageAll(ctx context.Context) error
	CreateBranch(ctx context.Context, name string) error
	Commit(ctx context.Context, message string) (hash string, err error)
	Push(ctx context.Context, branch string) error
	MergedBranches(ctx context.Context, into string) ([]string, error)
	DeleteBranch(ctx context.Context, name string) error

	AddWorktree(ctx context.Context, path, ref string) error
	RemoveWorktree(ctx context.Context, path string) error
	PruneWorktrees(ctx context.Context) error
	ListWorktrees(ctx context.Context) ([]string, error)
}

// PullRequest carries what the forge needs to open or update a PR.
type PullRequest struct {
	Head  string
	Base  string // empty lets the forge pick the repository default
	Title string
	Body  string
	Draft bool
}

// PendingIssues is an issue listing running in the background. A listing
// that will not be waited for normally is cancelled and then waited for.
type PendingIssues interface {
	Wait() (string, error)
	Cancel()
}

// GitHub is the interface for the forge, driven through the gh CLI.
type GitHub interface {
	StartIssueList(ctx context.Context) (PendingIssues, error)
	HasOpenPR(ctx context.Context, head string) (bool, error)
	CreatePR(ctx context.Context, pr PullRequest) error
	EditPR(ctx context.Context, pr PullRequest) error
	PRURL(ctx context.Context, head string) (string, error)
}

// Redactor redacts sensitive data from text.
type Redactor interface {
	Redact(text string) string
	RedactLog(text string) string // for logging (more aggressive)
}

// Reporter receives user-visible progress lines.
type Reporter interface {
	Report(level domain.Level, msg string)
}
