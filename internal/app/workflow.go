package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
)

// Options are the per-run switches from the command line.
type Options struct {
	UpdatePR bool // edit the open PR instead of creating one
	Ready    bool // open the PR ready for review instead of as a draft
	Stack    bool // start a new branch on top of the current one
	Hints    Hints
}

// Inspection is the repository state the session starts from.
type Inspection struct {
	Root          string
	Branch        string
	DefaultBranch string
	HeadCommit    string
	Staged        []string
	Unstaged      []string
	OnDefault     bool
}

// Clean reports a working tree and index without changes.
func (i Inspection) Clean() bool {
	return len(i.Staged) == 0 && len(i.Unstaged) == 0
}

// DiffPlan is everything the naming and mutation steps need.
type DiffPlan struct {
	Uncommitted    domain.CachedDiff
	Branch         domain.CachedDiff
	Base           BranchBase
	Issues         string
	UncommittedHit bool
	BranchHit      bool
}

// Empty reports that there is nothing to commit or propose.
func (p DiffPlan) Empty() bool {
	return p.Uncommitted.Empty() && p.Branch.Empty()
}

// Names holds the commit naming (from the uncommitted diff) and the PR
// naming (from the branch diff). They are equal when both diffs share a key.
type Names struct {
	Commit domain.Naming
	PR     domain.Naming
}

// BranchName is the name a fresh branch gets.
func (n Names) BranchName() string {
	if n.PR.BranchName != "" {
		return n.PR.BranchName
	}
	return n.Commit.BranchName
}

// Workflow runs the individual steps of a session against one repository.
type Workflow struct {
	git        ports.Git
	github     ports.GitHub
	diffs      *DiffService
	naming     *NamingService
	baseBranch string
	opts       Options
	log        zerolog.Logger
}

// NewWorkflow wires a workflow.
func NewWorkflow(g ports.Git, gh ports.GitHub, diffs *DiffService, naming *NamingService, baseBranch string, opts Options) *Workflow {
	return &Workflow{
		git:        g,
		github:     gh,
		diffs:      diffs,
		naming:     naming,
		baseBranch: baseBranch,
		opts:       opts,
		log:        observability.Component("workflow"),
	}
}

// Options returns the run options.
func (w *Workflow) Options() Options {
	return w.opts
}

// Inspect reads branch, default branch, HEAD and status. A detached HEAD or
// an empty repository is a RepositoryStateError.
func (w *Workflow) Inspect(ctx context.Context) (Inspection, error) {
	branch, err := w.git.CurrentBranch(ctx)
	if err != nil {
		return Inspection{}, domain.Wrap(domain.ErrRepositoryState, "current branch", err)
	}
	head, err := w.git.ResolveCommit(ctx, "HEAD")
	if err != nil {
		return Inspection{}, domain.Wrap(domain.ErrRepositoryState, "resolve HEAD", err)
	}
	def := w.baseBranch
	if def == "" {
		if def, err = w.git.DefaultBranch(ctx); err != nil {
			return Inspection{}, domain.Wrap(domain.ErrRepositoryState, "default branch", err)
		}
	}
	st, err := w.git.Status(ctx)
	if err != nil {
		return Inspection{}, domain.Wrap(domain.ErrRepositoryState, "status", err)
	}

	insp := Inspection{
		Root:          w.git.Dir(),
		Branch:        branch,
		DefaultBranch: def,
		HeadCommit:    head,
		Staged:        st.Staged,
		Unstaged:      st.Unstaged,
		OnDefault:     def != "" && branch == def,
	}
	w.log.Info().
		Str("branch", branch).
		Str("default", def).
		Int("staged", len(st.Staged)).
		Int("unstaged", len(st.Unstaged)).
		Msg("inspected repository")
	return insp, nil
}

// StageAll runs `git add -A` and re-inspects.
func (w *Workflow) StageAll(ctx context.Context) (Inspection, error) {
	if err := w.git.StageAll(ctx); err != nil {
		return Inspection{}, domain.Wrap(domain.ErrGitMutation, "stage all", err)
	}
	return w.Inspect(ctx)
}

// PreviewUnstaged returns the changes a StageAll would add.
func (w *Workflow) PreviewUnstaged(ctx context.Context, insp Inspection) (domain.CachedDiff, error) {
	return w.diffs.Unstaged(ctx, insp)
}

// Diff computes the uncommitted and branch diffs concurrently while the
// issue list is fetched in the background.
func (w *Workflow) Diff(ctx context.Context, insp Inspection) (DiffPlan, error) {
	pending, err := w.github.StartIssueList(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("issue listing not started")
	}
	defer func() {
		// set to nil once consumed; anything left is abandoned
		if pending != nil {
			pending.Cancel()
			_, _ = pending.Wait()
		}
	}()

	base, err := w.diffs.Base(ctx, insp, w.opts.Stack)
	if err != nil {
		return DiffPlan{}, err
	}
	indexTree, err := w.git.IndexTree(ctx)
	if err != nil {
		return DiffPlan{}, domain.Wrap(domain.ErrDiffComputation, "index tree", err)
	}

	plan := DiffPlan{Base: base}
	g, gctx := errgroup.WithContext(ctx)
	if len(insp.Staged) > 0 {
		g.Go(func() error {
			var err error
			plan.Uncommitted, plan.UncommittedHit, err = w.diffs.Uncommitted(gctx, insp, indexTree)
			return err
		})
	}
	g.Go(func() error {
		var err error
		plan.Branch, plan.BranchHit, err = w.diffs.Branch(gctx, insp, base, indexTree)
		return err
	})
	if err := g.Wait(); err != nil {
		return DiffPlan{}, err
	}

	if pending != nil {
		issues, err := pending.Wait()
		pending = nil
		if err != nil {
			w.log.Warn().Err(err).Msg("issue listing failed, continuing without issues")
		} else {
			plan.Issues = issues
		}
	}
	w.log.Info().
		Str("uncommitted", plan.Uncommitted.Key.String()).
		Str("branch", plan.Branch.Key.String()).
		Bool("fresh", base.Fresh).
		Msg("diffs ready")
	return plan, nil
}

// Name asks for the commit naming and the PR naming. Diffs sharing a key
// share one request.
func (w *Workflow) Name(ctx context.Context, plan DiffPlan) (Names, error) {
	var names Names
	g, gctx := errgroup.WithContext(ctx)
	if !plan.Uncommitted.Empty() {
		g.Go(func() error {
			var err error
			names.Commit, _, err = w.naming.Name(gctx, plan.Uncommitted, w.opts.Hints, plan.Issues)
			return err
		})
	}
	if !plan.Branch.Empty() {
		g.Go(func() error {
			var err error
			names.PR, _, err = w.naming.Name(gctx, plan.Branch, w.opts.Hints, plan.Issues)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Names{}, err
	}
	return names, nil
}

// Mutate creates the branch (for fresh branches), commits the staged changes
// and pushes. Each step checks ctx before it starts; a step that has started
// runs to completion. report is called after every completed step. It
// returns the branch that was pushed.
func (w *Workflow) Mutate(ctx context.Context, insp Inspection, plan DiffPlan, names Names, report func(string)) (string, error) {
	head := insp.Branch
	// a started git command must not be killed halfway
	run := context.WithoutCancel(ctx)
	staged := !plan.Uncommitted.Empty()

	if plan.Base.Fresh && staged {
		if err := checkCancelled(ctx, "create branch"); err != nil {
			return "", err
		}
		branch := names.BranchName()
		if err := w.git.CreateBranch(run, branch); err != nil {
			return "", domain.Wrap(domain.ErrGitMutation, "create branch "+branch, err)
		}
		head = branch
		report("created branch " + branch)
	}

	if staged {
		if err := checkCancelled(ctx, "commit"); err != nil {
			return "", err
		}
		hash, err := w.git.Commit(run, names.Commit.CommitMessage())
		if err != nil {
			return "", domain.Wrap(domain.ErrGitMutation, "commit", err)
		}
		report(fmt.Sprintf("committed %s %s", short(hash), names.Commit.CommitTitle))
	}

	if err := checkCancelled(ctx, "push"); err != nil {
		return "", err
	}
	if err := w.git.Push(run, head); err != nil {
		return "", domain.Wrap(domain.ErrGitMutation, "push "+head, err)
	}
	report("pushed " + head)
	return head, nil
}

// OpenPR creates a PR for head, or edits the open one with --update-pr, and
// returns its URL.
func (w *Workflow) OpenPR(ctx context.Context, head string, plan DiffPlan, names Names) (string, error) {
	if err := checkCancelled(ctx, "pull request"); err != nil {
		return "", err
	}
	naming := names.PR
	if naming.CommitTitle == "" {
		naming = names.Commit
	}
	pr := ports.PullRequest{
		Head:  head,
		Base:  plan.Base.PRBase,
		Title: naming.CommitTitle,
		Body:  naming.CommitDescription,
		Draft: !w.opts.Ready,
	}
	run := context.WithoutCancel(ctx)

	if w.opts.UpdatePR {
		open, err := w.github.HasOpenPR(run, head)
		if err != nil {
			return "", domain.Wrap(domain.ErrPRCreation, "look up PR", err)
		}
		if !open {
			return "", domain.Wrap(domain.ErrPRCreation, "update PR", fmt.Errorf("no open pull request for %s", head))
		}
		if err := w.github.EditPR(run, pr); err != nil {
			return "", domain.Wrap(domain.ErrPRCreation, "edit PR", err)
		}
	} else if err := w.github.CreatePR(run, pr); err != nil {
		return "", domain.Wrap(domain.ErrPRCreation, "create PR", err)
	}

	url, err := w.github.PRURL(run, head)
	if err != nil {
		return "", domain.Wrap(domain.ErrPRCreation, "PR URL", err)
	}
	return url, nil
}

// Prune deletes local branches merged into the default branch, never the
// current or the default branch itself.
func (w *Workflow) Prune(ctx context.Context, report func(string)) ([]string, error) {
	insp, err := w.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	if insp.DefaultBranch == "" {
		return nil, domain.Wrap(domain.ErrRepositoryState, "prune", errors.New("default branch unknown; set AUTOPR_BASE_BRANCH"))
	}
	merged, err := w.git.MergedBranches(ctx, insp.DefaultBranch)
	if err != nil {
		return nil, domain.Wrap(domain.ErrGitMutation, "merged branches", err)
	}

	var deleted []string
	for _, b := range merged {
		if b == insp.Branch || b == insp.DefaultBranch {
			continue
		}
		if err := checkCancelled(ctx, "prune"); err != nil {
			return deleted, err
		}
		if err := w.git.DeleteBranch(context.WithoutCancel(ctx), b); err != nil {
			return deleted, domain.Wrap(domain.ErrGitMutation, "delete "+b, err)
		}
		deleted = append(deleted, b)
		report("deleted branch " + b)
	}
	return deleted, nil
}

func checkCancelled(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.ErrCancelled, "before "+step, err)
	}
	return nil
}

func short(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
