package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/adapters/process"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
)

// excludeLocks keeps lock files out of every diff handed to the model.
var excludeLocks = []string{"--", ".", ":!*.lock"}

// Repo implements ports.Git by running the git CLI in a fixed directory.
type Repo struct {
	dir    string
	runner process.Runner
	refs   *refReader
	log    zerolog.Logger
}

var _ ports.Git = (*Repo)(nil)

// New binds a Repo to dir without validating it.
func New(runner process.Runner, dir string) *Repo {
	return &Repo{
		dir:    dir,
		runner: runner,
		refs:   newRefReader(dir),
		log:    observability.Component("git").With().Str("dir", dir).Logger(),
	}
}

// Open validates that dir is inside a work tree and binds a Repo to its
// top-level directory.
func Open(ctx context.Context, runner process.Runner, dir string) (*Repo, error) {
	probe := New(runner, dir)
	top, err := probe.output(ctx, "open repository", "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, domain.Wrap(domain.ErrRepositoryState, dir, fmt.Errorf("%w: %w", ErrNotRepository, err))
	}
	return New(runner, strings.TrimSpace(top)), nil
}

// Dir returns the working directory commands run in.
func (r *Repo) Dir() string {
	return r.dir
}

// At returns a Repo running commands in dir with the same runner.
func (r *Repo) At(dir string) ports.Git {
	return New(r.runner, dir)
}

func (r *Repo) exec(ctx context.Context, stdin []byte, args ...string) (process.Result, process.Command, error) {
	cmd := process.Command{Dir: r.dir, Name: "git", Args: args, Stdin: stdin}
	res, err := r.runner.Run(ctx, cmd)
	r.log.Debug().Str("cmd", cmd.String()).Int("exit", res.ExitCode).Err(err).Msg("git")
	return res, cmd, err
}

// output runs git and returns stdout, turning non-zero exits into *Error.
func (r *Repo) output(ctx context.Context, op string, args ...string) (string, error) {
	return r.outputStdin(ctx, op, nil, args...)
}

func (r *Repo) outputStdin(ctx context.Context, op string, stdin []byte, args ...string) (string, error) {
	res, cmd, err := r.exec(ctx, stdin, args...)
	if err != nil {
		return "", &Error{Op: op, Cmd: cmd.String(), Err: err}
	}
	if err := res.Err(cmd); err != nil {
		return "", &Error{Op: op, Cmd: cmd.String(), Output: strings.TrimSpace(string(res.Stderr)), Err: err}
	}
	return string(res.Stdout), nil
}

// check runs git for its exit status: 0 is true, 1 is false, anything else
// is an error.
func (r *Repo) check(ctx context.Context, op string, args ...string) (bool, error) {
	res, cmd, err := r.exec(ctx, nil, args...)
	if err != nil {
		return false, &Error{Op: op, Cmd: cmd.String(), Err: err}
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, &Error{Op: op, Cmd: cmd.String(), Output: strings.TrimSpace(string(res.Stderr)), Err: res.Err(cmd)}
	}
}

// CurrentBranch returns the checked-out branch, also for unborn branches.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "current branch", "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDetachedHead, err)
	}
	return strings.TrimSpace(out), nil
}

// DefaultBranch returns the default branch of origin. It reads the local
// origin/HEAD pointer, which `git push -u` never sets, then asks the remote
// with `ls-remote --symref`, then settles on main or master. Without an
// origin remote it returns "".
func (r *Repo) DefaultBranch(ctx context.Context) (string, error) {
	res, _, err := r.exec(ctx, nil, "symbolic-ref", "--quiet", "refs/remotes/origin/HEAD")
	if err != nil {
		return "", &Error{Op: "default branch", Err: err}
	}
	if res.OK() {
		ref := strings.TrimSpace(string(res.Stdout))
		return strings.TrimPrefix(ref, "refs/remotes/origin/"), nil
	}

	hasOrigin, err := r.check(ctx, "origin remote", "config", "--get", "remote.origin.url")
	if err != nil || !hasOrigin {
		return "", err
	}
	if name := r.remoteHead(ctx); name != "" {
		return name, nil
	}
	for _, name := range fallbackDefaults {
		for _, ref := range []string{"refs/remotes/origin/" + name, "refs/heads/" + name} {
			ok, err := r.check(ctx, "default branch", "show-ref", "--verify", "--quiet", ref)
			if err != nil {
				return "", err
			}
			if ok {
				r.log.Debug().Str("branch", name).Msg("origin/HEAD unset, assuming default branch")
				return name, nil
			}
		}
	}
	return "", nil
}

var fallbackDefaults = []string{"main", "master"}

// remoteHeadTimeout bounds the one network query DefaultBranch makes.
const remoteHeadTimeout = 10 * time.Second

// remoteHead asks origin which branch its HEAD points at. Failures are
// logged and reported as "".
func (r *Repo) remoteHead(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, remoteHeadTimeout)
	defer cancel()
	out, err := r.output(ctx, "remote head", "ls-remote", "--symref", "origin", "HEAD")
	if err != nil {
		r.log.Debug().Err(err).Msg("ls-remote failed")
		return ""
	}
	return parseSymref(out)
}

// parseSymref extracts the branch from `ls-remote --symref` output, whose
// first line reads "ref: refs/heads/<name>\tHEAD".
func parseSymref(out string) string {
	for _, line := range splitLines(out) {
		target, ok := strings.CutPrefix(line, "ref: ")
		if !ok {
			continue
		}
		target, _, _ = strings.Cut(target, "\t")
		return strings.TrimPrefix(strings.TrimSpace(target), "refs/heads/")
	}
	return ""
}

// LocalBranches lists local branches, sorted by name.
func (r *Repo) LocalBranches(ctx context.Context) ([]string, error) {
	names, err := r.refs.branches()
	if err == nil {
		return names, nil
	}
	r.log.Debug().Err(err).Msg("go-git branch listing failed, using for-each-ref")

	out, err := r.output(ctx, "list branches", "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	names = splitLines(out)
	sort.Strings(names)
	return names, nil
}

// BranchExists reports whether refs/heads/<name> exists.
func (r *Repo) BranchExists(ctx context.Context, name string) (bool, error) {
	return r.check(ctx, "branch exists", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
}

// ResolveCommit resolves rev to a full commit hash.
func (r *Repo) ResolveCommit(ctx context.Context, rev string) (string, error) {
	if h, err := r.refs.resolve(rev); err == nil {
		return h, nil
	}
	out, err := r.output(ctx, "resolve "+rev, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		if rev == "HEAD" {
			return "", fmt.Errorf("%w: %w", ErrNoCommits, err)
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (r *Repo) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	return r.check(ctx, "is ancestor", "merge-base", "--is-ancestor", ancestor, descendant)
}

// CommitDistance counts commits reachable from to but not from from.
func (r *Repo) CommitDistance(ctx context.Context, from, to string) (int, error) {
	out, err := r.output(ctx, "commit distance", "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n, nil
}

// MergeBase returns the best common ancestor of a and b.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	res, cmd, err := r.exec(ctx, nil, "merge-base", a, b)
	if err != nil {
		return "", &Error{Op: "merge base", Cmd: cmd.String(), Err: err}
	}
	switch res.ExitCode {
	case 0:
		return strings.TrimSpace(string(res.Stdout)), nil
	case 1:
		return "", ErrNoMergeBase
	default:
		return "", &Error{Op: "merge base", Cmd: cmd.String(), Output: strings.TrimSpace(string(res.Stderr)), Err: res.Err(cmd)}
	}
}

// Status parses `git status --porcelain=v1 -z`.
func (r *Repo) Status(ctx context.Context) (ports.Status, error) {
	out, err := r.output(ctx, "status", "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return ports.Status{}, err
	}
	return parsePorcelain(out), nil
}

func parsePorcelain(out string) ports.Status {
	var st ports.Status
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		x, y, path := entry[0], entry[1], entry[3:]
		if x == 'R' || x == 'C' {
			i++ // the original path follows as its own field
		}
		if x == '?' && y == '?' {
			st.Unstaged = append(st.Unstaged, path)
			continue
		}
		if x != ' ' && x != '!' {
			st.Staged = append(st.Staged, path)
		}
		if y != ' ' && y != '!' {
			st.Unstaged = append(st.Unstaged, path)
		}
	}
	return st
}

// IndexTree writes the index as a tree object and returns its hash.
func (r *Repo) IndexTree(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "write tree", "write-tree")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func diffArgs(opts ports.DiffOptions, extra ...string) []string {
	args := []string{"diff", "--no-color", "--no-ext-diff"}
	args = append(args, extra...)
	if opts.Cached {
		args = append(args, "--cached")
	}
	if opts.Base != "" {
		args = append(args, opts.Base)
	}
	if opts.Head != "" {
		args = append(args, opts.Head)
	}
	return append(args, excludeLocks...)
}

// Diff returns a unified diff, excluding lock files.
func (r *Repo) Diff(ctx context.Context, opts ports.DiffOptions) (string, error) {
	return r.output(ctx, "diff", diffArgs(opts)...)
}

// DiffNames returns the paths a diff touches.
func (r *Repo) DiffNames(ctx context.Context, opts ports.DiffOptions) ([]string, error) {
	out, err := r.output(ctx, "diff names", diffArgs(opts, "--name-only", "-z")...)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, n := range strings.Split(out, "\x00") {
		if n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// StagedPatch returns the index changes as a binary-safe patch.
func (r *Repo) StagedPatch(ctx context.Context) ([]byte, error) {
	out, err := r.output(ctx, "staged patch", "diff", "--cached", "--binary", "--no-color", "--no-ext-diff")
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ApplyToIndex applies a patch to the index only.
func (r *Repo) ApplyToIndex(ctx context.Context, patch []byte) error {
	if len(bytes.TrimSpace(patch)) == 0 {
		return nil
	}
	_, err := r.outputStdin(ctx, "apply patch", patch, "apply", "--cached", "--binary", "--whitespace=nowarn", "-")
	return err
}

// StageAll stages every change including untracked files.
func (r *Repo) StageAll(ctx context.Context) error {
	_, err := r.output(ctx, "stage all", "add", "-A")
	return err
}

// CreateBranch creates name at HEAD and switches to it, keeping the index.
func (r *Repo) CreateBranch(ctx context.Context, name string) error {
	exists, err := r.BranchExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrBranchExists, name)
	}
	_, err = r.output(ctx, "create branch", "checkout", "-b", name)
	return err
}

// Commit commits the index with message and returns the new HEAD hash.
func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	tmpFile, err := os.CreateTemp("", "autopr-msg-*.txt")
	if err != nil {
		return "", fmt.Errorf("create message file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.WriteString(message); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("write message file: %w", err)
	}
	tmpFile.Close()

	if _, err := r.output(ctx, "commit", "commit", "--quiet", "-F", tmpFile.Name()); err != nil {
		return "", err
	}
	out, err := r.output(ctx, "commit", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Push pushes branch to origin, setting upstream when it has none.
func (r *Repo) Push(ctx context.Context, branch string) error {
	hasUpstream, err := r.check(ctx, "upstream", "rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{u}")
	if err != nil {
		// rev-parse exits 128 for a missing upstream
		hasUpstream = false
	}
	args := []string{"push", "--quiet", "origin", branch}
	if !hasUpstream {
		args = []string{"push", "--quiet", "--set-upstream", "origin", branch}
	}
	_, err = r.output(ctx, "push", args...)
	return err
}

// MergedBranches lists local branches fully merged into into.
func (r *Repo) MergedBranches(ctx context.Context, into string) ([]string, error) {
	out, err := r.output(ctx, "merged branches", "for-each-ref", "--merged="+into, "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// DeleteBranch deletes a merged local branch.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	_, err := r.output(ctx, "delete branch", "branch", "-d", name)
	return err
}

// AddWorktree checks ref out, detached, at path.
func (r *Repo) AddWorktree(ctx context.Context, path, ref string) error {
	_, err := r.output(ctx, "add worktree", "worktree", "add", "--detach", "--quiet", path, ref)
	return err
}

// RemoveWorktree unregisters the worktree at path and deletes its files.
func (r *Repo) RemoveWorktree(ctx context.Context, path string) error {
	_, err := r.output(ctx, "remove worktree", "worktree", "remove", "--force", path)
	return err
}

// PruneWorktrees drops registrations whose directories are gone.
func (r *Repo) PruneWorktrees(ctx context.Context) error {
	_, err := r.output(ctx, "prune worktrees", "worktree", "prune")
	return err
}

// ListWorktrees returns the paths of every registered worktree.
func (r *Repo) ListWorktrees(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "list worktrees", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if p, ok := strings.CutPrefix(line, "worktree "); ok {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
