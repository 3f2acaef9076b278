package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/adapters/cache"
	"github.com/chuckie/autopr/internal/adapters/git"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
)

// DiffService derives DiffKeys and computes diffs through the PatchCache.
// Branch diffs are taken inside a temporary worktree so the caller's working
// tree and index stay untouched.
type DiffService struct {
	git       ports.Git
	worktrees *git.WorktreeManager
	cache     *cache.PatchCache
	resolver  *Resolver
	log       zerolog.Logger
}

// NewDiffService wires a diff service.
func NewDiffService(g ports.Git, worktrees *git.WorktreeManager, c *cache.PatchCache, resolver *Resolver) *DiffService {
	return &DiffService{
		git:       g,
		worktrees: worktrees,
		cache:     c,
		resolver:  resolver,
		log:       observability.Component("diff"),
	}
}

// BranchBase is where a branch diff starts and which branch a PR targets.
type BranchBase struct {
	Commit string // commit hash, or domain.EmptyTree
	PRBase string // branch name; empty leaves the choice to the forge
	Fresh  bool   // a new branch will be created for the staged changes
}

// Base decides the branch base. It is the only place ErrNoParentBranch is
// turned into the empty-tree fallback.
func (s *DiffService) Base(ctx context.Context, insp Inspection, stack bool) (BranchBase, error) {
	if insp.OnDefault || stack {
		// The staged changes go to a new branch whose only commit will be
		// built from the index.
		return BranchBase{Commit: insp.HeadCommit, PRBase: insp.Branch, Fresh: true}, nil
	}

	parent, err := s.resolver.Resolve(ctx, insp.Branch)
	if errors.Is(err, domain.ErrNoParentBranch) {
		s.log.Info().Str("branch", insp.Branch).Msg("no parent branch, diffing entire history")
		return BranchBase{Commit: domain.EmptyTree}, nil
	}
	if err != nil {
		return BranchBase{}, err
	}

	mb, err := s.git.MergeBase(ctx, parent, insp.HeadCommit)
	if errors.Is(err, git.ErrNoMergeBase) {
		s.log.Info().Str("parent", parent).Msg("no merge base with parent, diffing entire history")
		return BranchBase{Commit: domain.EmptyTree}, nil
	}
	if err != nil {
		return BranchBase{}, domain.Wrap(domain.ErrDiffComputation, "merge base", err)
	}
	return BranchBase{Commit: mb, PRBase: strings.TrimPrefix(parent, "origin/")}, nil
}

// UncommittedKey identifies the staged changes on top of HEAD.
func UncommittedKey(insp Inspection, indexTree string) domain.DiffKey {
	return domain.DiffKey{Base: insp.HeadCommit, Head: domain.TreeHead(indexTree)}
}

// BranchKey identifies everything the branch will contain once the staged
// changes are committed.
func BranchKey(base BranchBase, indexTree string) domain.DiffKey {
	return domain.DiffKey{Base: base.Commit, Head: domain.TreeHead(indexTree)}
}

// Uncommitted returns the staged diff against HEAD. It only reads the index.
func (s *DiffService) Uncommitted(ctx context.Context, insp Inspection, indexTree string) (domain.CachedDiff, bool, error) {
	key := UncommittedKey(insp, indexTree)
	return s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (domain.CachedDiff, error) {
		opts := ports.DiffOptions{Base: insp.HeadCommit, Cached: true}
		return s.compute(ctx, s.git, key, opts)
	})
}

// Branch returns the diff from base to the tree the branch will have after
// committing the staged changes.
func (s *DiffService) Branch(ctx context.Context, insp Inspection, base BranchBase, indexTree string) (domain.CachedDiff, bool, error) {
	key := BranchKey(base, indexTree)
	staged := len(insp.Staged) > 0
	return s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (domain.CachedDiff, error) {
		var patch []byte
		if staged {
			var err error
			if patch, err = s.git.StagedPatch(ctx); err != nil {
				return domain.CachedDiff{}, domain.Wrap(domain.ErrDiffComputation, "staged patch", err)
			}
		}

		var out domain.CachedDiff
		err := s.worktrees.Do(ctx, insp.HeadCommit, func(w *git.ScopedWorktree) error {
			wg := w.Git()
			opts := ports.DiffOptions{Base: base.Commit, Head: insp.HeadCommit}
			if len(patch) > 0 {
				if err := wg.ApplyToIndex(ctx, patch); err != nil {
					return domain.Wrap(domain.ErrDiffComputation, "replay staged changes", err)
				}
				opts = ports.DiffOptions{Base: base.Commit, Cached: true}
			}
			var err error
			out, err = s.compute(ctx, wg, key, opts)
			return err
		})
		return out, err
	})
}

func (s *DiffService) compute(ctx context.Context, g ports.Git, key domain.DiffKey, opts ports.DiffOptions) (domain.CachedDiff, error) {
	text, err := g.Diff(ctx, opts)
	if err != nil {
		return domain.CachedDiff{}, domain.Wrap(domain.ErrDiffComputation, "diff "+key.String(), err)
	}
	files, err := g.DiffNames(ctx, opts)
	if err != nil {
		return domain.CachedDiff{}, domain.Wrap(domain.ErrDiffComputation, "diff names "+key.String(), err)
	}
	s.log.Debug().Str("key", key.String()).Int("bytes", len(text)).Int("files", len(files)).Msg("diff computed")
	return domain.CachedDiff{Key: key, Text: text, Files: files}, nil
}

// Unstaged previews the working-tree changes outside the index, as offered
// for staging. Its key fingerprints the diff and the untracked paths, so any
// edit yields a new key.
func (s *DiffService) Unstaged(ctx context.Context, insp Inspection) (domain.CachedDiff, error) {
	text, err := s.git.Diff(ctx, ports.DiffOptions{})
	if err != nil {
		return domain.CachedDiff{}, domain.Wrap(domain.ErrDiffComputation, "unstaged diff", err)
	}
	h := sha256.New()
	h.Write([]byte(text))
	for _, f := range insp.Unstaged {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	key := domain.DiffKey{Base: insp.HeadCommit, Head: domain.WorktreeHead(hex.EncodeToString(h.Sum(nil)))}
	d, _, err := s.cache.GetOrCompute(ctx, key, func(context.Context) (domain.CachedDiff, error) {
		return domain.CachedDiff{Key: key, Text: text, Files: insp.Unstaged}, nil
	})
	return d, err
}
