package git

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chuckie/autopr/internal/adapters/process"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/ports"
	"github.com/chuckie/autopr/internal/testutil"
)

func openTestRepo(t *testing.T) (*testutil.TestRepo, *Repo) {
	t.Helper()
	tr := testutil.NewTestRepo(t)
	repo, err := Open(context.Background(), process.NewRunner(), tr.Dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return tr, repo
}

func TestOpenRejectsNonRepository(t *testing.T) {
	testutil.RequireGit(t)
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	_, err := Open(context.Background(), process.NewRunner(), dir)
	if !errors.Is(err, domain.ErrRepositoryState) {
		t.Fatalf("Open() error = %v, want ErrRepositoryState", err)
	}
	if !errors.Is(err, ErrNotRepository) {
		t.Errorf("Open() error = %v, want ErrNotRepository", err)
	}
}

func TestBranchQueries(t *testing.T) {
	tr, repo := openTestRepo(t)
	ctx := context.Background()
	tr.Git("branch", "zeta")
	tr.Git("branch", "alpha")

	branch, err := repo.CurrentBranch(ctx)
	if err != nil || branch != "main" {
		t.Fatalf("CurrentBranch() = (%q, %v), want main", branch, err)
	}

	branches, err := repo.LocalBranches(ctx)
	if err != nil {
		t.Fatalf("LocalBranches() error = %v", err)
	}
	if want := []string{"alpha", "main", "zeta"}; !reflect.DeepEqual(branches, want) {
		t.Errorf("LocalBranches() = %v, want %v", branches, want)
	}

	exists, err := repo.BranchExists(ctx, "alpha")
	if err != nil || !exists {
		t.Errorf("BranchExists(alpha) = (%v, %v)", exists, err)
	}
	exists, err = repo.BranchExists(ctx, "missing")
	if err != nil || exists {
		t.Errorf("BranchExists(missing) = (%v, %v)", exists, err)
	}

	def, err := repo.DefaultBranch(ctx)
	if err != nil || def != "" {
		t.Errorf("DefaultBranch() without remote = (%q, %v), want empty", def, err)
	}
	tr.AddRemote()
	def, err = repo.DefaultBranch(ctx)
	if err != nil || def != "main" {
		t.Errorf("DefaultBranch() = (%q, %v), want main", def, err)
	}
}

func TestDetachedHead(t *testing.T) {
	tr, repo := openTestRepo(t)
	tr.Git("checkout", "--quiet", "--detach")

	_, err := repo.CurrentBranch(context.Background())
	if !errors.Is(err, ErrDetachedHead) {
		t.Errorf("CurrentBranch() error = %v, want ErrDetachedHead", err)
	}
}

func TestAncestryQueries(t *testing.T) {
	tr, repo := openTestRepo(t)
	ctx := context.Background()
	base := tr.Git("rev-parse", "HEAD")
	tr.Git("checkout", "--quiet", "-b", "feature")
	tr.CommitFile("a.txt", "a\n", "a")
	head := tr.CommitFile("b.txt", "b\n", "b")

	resolved, err := repo.ResolveCommit(ctx, "feature")
	if err != nil || resolved != head {
		t.Fatalf("ResolveCommit(feature) = (%q, %v), want %s", resolved, err, head)
	}
	resolved, err = repo.ResolveCommit(ctx, "HEAD")
	if err != nil || resolved != head {
		t.Fatalf("ResolveCommit(HEAD) = (%q, %v), want %s", resolved, err, head)
	}

	ok, err := repo.IsAncestor(ctx, "main", "feature")
	if err != nil || !ok {
		t.Errorf("IsAncestor(main, feature) = (%v, %v)", ok, err)
	}
	ok, err = repo.IsAncestor(ctx, "feature", "main")
	if err != nil || ok {
		t.Errorf("IsAncestor(feature, main) = (%v, %v)", ok, err)
	}

	n, err := repo.CommitDistance(ctx, "main", "feature")
	if err != nil || n != 2 {
		t.Errorf("CommitDistance() = (%d, %v), want 2", n, err)
	}

	mb, err := repo.MergeBase(ctx, "main", "feature")
	if err != nil || mb != base {
		t.Errorf("MergeBase() = (%q, %v), want %s", mb, err, base)
	}
}

func TestStatusAndDiff(t *testing.T) {
	tr, repo := openTestRepo(t)
	ctx := context.Background()

	st, err := repo.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.HasStaged() || st.HasUnstaged() {
		t.Fatalf("clean repo reported changes: %+v", st)
	}

	tr.WriteFile("staged.go", "package x\n")
	tr.WriteFile("deps.lock", "locked\n")
	tr.Git("add", "staged.go", "deps.lock")
	tr.WriteFile("README.md", "# changed\n")
	tr.WriteFile("untracked.txt", "new\n")

	st, err = repo.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if want := []string{"deps.lock", "staged.go"}; !reflect.DeepEqual(st.Staged, want) {
		t.Errorf("Staged = %v, want %v", st.Staged, want)
	}
	if want := []string{"README.md", "untracked.txt"}; !reflect.DeepEqual(st.Unstaged, want) {
		t.Errorf("Unstaged = %v, want %v", st.Unstaged, want)
	}

	head, _ := repo.ResolveCommit(ctx, "HEAD")
	opts := ports.DiffOptions{Base: head, Cached: true}
	diff, err := repo.Diff(ctx, opts)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if !strings.Contains(diff, "staged.go") {
		t.Errorf("diff missing staged.go:\n%s", diff)
	}
	if strings.Contains(diff, "deps.lock") {
		t.Errorf("diff should exclude lock files:\n%s", diff)
	}

	names, err := repo.DiffNames(ctx, opts)
	if err != nil || !reflect.DeepEqual(names, []string{"staged.go"}) {
		t.Errorf("DiffNames() = (%v, %v)", names, err)
	}

	tree1, err := repo.IndexTree(ctx)
	if err != nil {
		t.Fatalf("IndexTree() error = %v", err)
	}
	tr.Git("add", "README.md")
	tree2, _ := repo.IndexTree(ctx)
	if tree1 == tree2 {
		t.Error("index tree should change when the index changes")
	}
}

func TestParsePorcelainRename(t *testing.T) {
	st := parsePorcelain("R  new.go\x00old.go\x00 M mod.go\x00?? new.txt\x00MM both.go\x00")
	if want := []string{"new.go", "both.go"}; !reflect.DeepEqual(st.Staged, want) {
		t.Errorf("Staged = %v, want %v", st.Staged, want)
	}
	if want := []string{"mod.go", "new.txt", "both.go"}; !reflect.DeepEqual(st.Unstaged, want) {
		t.Errorf("Unstaged = %v, want %v", st.Unstaged, want)
	}
}

func TestMutations(t *testing.T) {
	tr, repo := openTestRepo(t)
	ctx := context.Background()
	tr.AddRemote()

	tr.WriteFile("new.txt", "hello\n")
	if err := repo.StageAll(ctx); err != nil {
		t.Fatalf("StageAll() error = %v", err)
	}
	if err := repo.CreateBranch(ctx, "feature/x"); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	if err := repo.CreateBranch(ctx, "feature/x"); !errors.Is(err, domain.ErrBranchExists) {
		t.Errorf("CreateBranch() twice error = %v, want ErrBranchExists", err)
	}

	hash, err := repo.Commit(ctx, "feat: add new\n\nbody")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if hash != tr.Git("rev-parse", "HEAD") {
		t.Errorf("Commit() hash = %s, want HEAD", hash)
	}
	if msg := tr.Git("log", "-1", "--format=%B"); msg != "feat: add new\n\nbody" {
		t.Errorf("commit message = %q", msg)
	}

	if err := repo.Push(ctx, "feature/x"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if upstream := tr.Git("rev-parse", "--abbrev-ref", "feature/x@{u}"); upstream != "origin/feature/x" {
		t.Errorf("upstream = %q", upstream)
	}
	tr.CommitFile("more.txt", "more\n", "more")
	if err := repo.Push(ctx, "feature/x"); err != nil {
		t.Fatalf("second Push() error = %v", err)
	}
	if got := tr.RemoteBranches(); !reflect.DeepEqual(got, []string{"feature/x", "main"}) {
		t.Errorf("remote branches = %v", got)
	}
}

func TestMergedBranchesAndDelete(t *testing.T) {
	tr, repo := openTestRepo(t)
	ctx := context.Background()
	tr.Git("branch", "merged")
	tr.Git("checkout", "--quiet", "-b", "unmerged")
	tr.CommitFile("x.txt", "x\n", "x")
	tr.Git("checkout", "--quiet", "main")

	merged, err := repo.MergedBranches(ctx, "main")
	if err != nil {
		t.Fatalf("MergedBranches() error = %v", err)
	}
	if want := []string{"main", "merged"}; !reflect.DeepEqual(merged, want) {
		t.Errorf("MergedBranches() = %v, want %v", merged, want)
	}
	if err := repo.DeleteBranch(ctx, "merged"); err != nil {
		t.Fatalf("DeleteBranch() error = %v", err)
	}
	if exists, _ := repo.BranchExists(ctx, "merged"); exists {
		t.Error("branch still exists after delete")
	}
}

func TestLocalBranchesFallsBackToCLI(t *testing.T) {
	tr, _ := openTestRepo(t)
	tr.Git("branch", "other")

	repo := New(process.NewRunner(), tr.Dir)
	repo.refs = newRefReader(t.TempDir()) // not a repository: go-git fails
	branches, err := repo.LocalBranches(context.Background())
	if err != nil {
		t.Fatalf("LocalBranches() error = %v", err)
	}
	if want := []string{"main", "other"}; !reflect.DeepEqual(branches, want) {
		t.Errorf("LocalBranches() = %v, want %v", branches, want)
	}
}

func TestDefaultBranchWithoutOriginHead(t *testing.T) {
	tr, repo := openTestRepo(t)
	tr.AddRemoteWithoutHead()
	ctx := context.Background()

	if set, _ := repo.check(ctx, "origin head", "symbolic-ref", "--quiet", "refs/remotes/origin/HEAD"); set {
		t.Fatal("origin/HEAD should be unset after push -u")
	}
	def, err := repo.DefaultBranch(ctx)
	if err != nil || def != "main" {
		t.Errorf("DefaultBranch() = (%q, %v), want main from ls-remote", def, err)
	}

	// origin unreachable: fall back to a known default name
	runner := process.NewMockRunner(process.NewRunner())
	runner.OnPrefix("git", []string{"ls-remote"}, process.Result{ExitCode: 128, Stderr: []byte("fatal: unable to access")})
	tr.Git("branch", "-m", "main", "master")
	tr.Git("update-ref", "-d", "refs/remotes/origin/main")
	offline := New(runner, tr.Dir)
	def, err = offline.DefaultBranch(ctx)
	if err != nil || def != "master" {
		t.Errorf("DefaultBranch() offline = (%q, %v), want master", def, err)
	}
}

func TestParseSymref(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"ref: refs/heads/trunk\tHEAD\n0123abcd\tHEAD\n", "trunk"},
		{"0123abcd\tHEAD\n", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseSymref(tt.out); got != tt.want {
			t.Errorf("parseSymref(%q) = %q, want %q", tt.out, got, tt.want)
		}
	}
}
