package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
)

// Resolver infers the branch the current branch was started from.
type Resolver struct {
	git        ports.Git
	configured string
	log        zerolog.Logger
}

// NewResolver creates a resolver. configured, when non-empty, takes the place
// of the remote default branch.
func NewResolver(git ports.Git, configured string) *Resolver {
	return &Resolver{
		git:        git,
		configured: configured,
		log:        observability.Component("resolver"),
	}
}

// Resolve returns the most plausible base ref for current:
//  1. the configured or remote default branch, when it is not current
//     (the local branch if present, else origin/<name>);
//  2. the nearest local ancestor branch by commit distance, ties by name;
//  3. domain.ErrNoParentBranch.
//
// Resolve only reads from the repository.
func (r *Resolver) Resolve(ctx context.Context, current string) (string, error) {
	def := r.configured
	if def == "" {
		var err error
		def, err = r.git.DefaultBranch(ctx)
		if err != nil {
			return "", domain.Wrap(domain.ErrRepositoryState, "default branch", err)
		}
	}
	if def != "" && def != current {
		ref, err := r.existing(ctx, def)
		if err != nil {
			return "", err
		}
		if ref != "" {
			r.log.Debug().Str("current", current).Str("parent", ref).Msg("parent is default branch")
			return ref, nil
		}
	}

	branches, err := r.git.LocalBranches(ctx)
	if err != nil {
		return "", domain.Wrap(domain.ErrRepositoryState, "list branches", err)
	}
	best, bestDist := "", -1
	for _, b := range branches {
		if b == current {
			continue
		}
		ok, err := r.git.IsAncestor(ctx, b, current)
		if err != nil {
			return "", domain.Wrap(domain.ErrRepositoryState, "ancestry of "+b, err)
		}
		if !ok {
			continue
		}
		dist, err := r.git.CommitDistance(ctx, b, current)
		if err != nil {
			return "", domain.Wrap(domain.ErrRepositoryState, "distance to "+b, err)
		}
		// branches are sorted, so strict < keeps the first name on ties
		if bestDist < 0 || dist < bestDist {
			best, bestDist = b, dist
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w for %s", domain.ErrNoParentBranch, current)
	}
	r.log.Debug().Str("current", current).Str("parent", best).Int("distance", bestDist).Msg("parent is nearest ancestor")
	return best, nil
}

// existing returns name when it is a local branch, origin/name when only the
// remote-tracking branch exists, and "" otherwise.
func (r *Resolver) existing(ctx context.Context, name string) (string, error) {
	ok, err := r.git.BranchExists(ctx, name)
	if err != nil {
		return "", domain.Wrap(domain.ErrRepositoryState, "branch "+name, err)
	}
	if ok {
		return name, nil
	}
	if _, err := r.git.ResolveCommit(ctx, "origin/"+name); err == nil {
		return "origin/" + name, nil
	}
	return "", nil
}
