package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when the git binary is unavailable.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// TestRepo is a throwaway repository on branch main with one commit.
type TestRepo struct {
	t      *testing.T
	Dir    string
	Remote string
}

// NewTestRepo creates a repository in a temp dir, isolated from the user's
// global git configuration.
func NewTestRepo(t *testing.T) *TestRepo {
	t.Helper()
	RequireGit(t)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_TERMINAL_PROMPT", "0")

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	r := &TestRepo{t: t, Dir: dir}
	r.Git("init", "--quiet")
	r.Git("symbolic-ref", "HEAD", "refs/heads/main")
	r.Git("config", "user.name", "Test User")
	r.Git("config", "user.email", "test@example.com")
	r.Git("config", "commit.gpgsign", "false")
	r.WriteFile("README.md", "# test\n")
	r.Git("add", "README.md")
	r.Git("commit", "--quiet", "-m", "initial commit")
	return r
}

// Git runs git in the repository and returns trimmed stdout.
func (r *TestRepo) Git(args ...string) string {
	r.t.Helper()
	return runGit(r.t, r.Dir, args...)
}

// WriteFile writes content to a path relative to the repository root.
func (r *TestRepo) WriteFile(rel, content string) {
	r.t.Helper()
	path := filepath.Join(r.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", rel, err)
	}
}

// CommitFile writes, stages and commits a single file.
func (r *TestRepo) CommitFile(rel, content, msg string) string {
	r.t.Helper()
	r.WriteFile(rel, content)
	r.Git("add", rel)
	r.Git("commit", "--quiet", "-m", msg)
	return r.Git("rev-parse", "HEAD")
}

// AddRemote creates a bare origin, pushes main and points origin/HEAD at it.
func (r *TestRepo) AddRemote() string {
	r.t.Helper()
	remote := r.AddRemoteWithoutHead()
	r.Git("remote", "set-head", "origin", "main")
	return remote
}

// AddRemoteWithoutHead creates a bare origin whose HEAD is main and pushes
// with `push -u`, which leaves refs/remotes/origin/HEAD unset.
func (r *TestRepo) AddRemoteWithoutHead() string {
	r.t.Helper()
	remote := filepath.Join(r.t.TempDir(), "origin.git")
	runGit(r.t, "", "init", "--quiet", "--bare", remote)
	runGit(r.t, remote, "symbolic-ref", "HEAD", "refs/heads/main")
	r.Git("remote", "add", "origin", remote)
	r.Git("push", "--quiet", "-u", "origin", "main")
	r.Remote = remote
	return remote
}

// RemoteBranches lists branch names on the bare origin.
func (r *TestRepo) RemoteBranches() []string {
	r.t.Helper()
	out := runGit(r.t, r.Remote, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}
