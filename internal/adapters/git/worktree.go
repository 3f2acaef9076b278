package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
)

// releaseTimeout bounds removal, which runs even after the caller's context
// has been cancelled.
const releaseTimeout = 30 * time.Second

// WorktreeManager creates temporary detached worktrees of one repository and
// tracks the ones still open.
type WorktreeManager struct {
	git     ports.Git
	tempDir string
	log     zerolog.Logger

	mu   sync.Mutex
	live map[*ScopedWorktree]struct{}
}

// NewWorktreeManager creates worktrees under the system temp directory.
func NewWorktreeManager(git ports.Git) *WorktreeManager {
	return &WorktreeManager{
		git:  git,
		log:  observability.Component("worktree"),
		live: make(map[*ScopedWorktree]struct{}),
	}
}

// ScopedWorktree exclusively owns one temporary worktree. Close releases it
// and is safe to call more than once.
type ScopedWorktree struct {
	mgr  *WorktreeManager
	root string // temp directory owning path
	path string
	ref  string
	once sync.Once
	err  error
}

// Path is the worktree's checkout directory.
func (w *ScopedWorktree) Path() string {
	return w.path
}

// Git returns a git adapter running inside the worktree.
func (w *ScopedWorktree) Git() ports.Git {
	return w.mgr.git.At(w.path)
}

// Enter checks ref out into a fresh temporary directory. The caller's working
// tree and index are not touched.
func (m *WorktreeManager) Enter(ctx context.Context, ref string) (*ScopedWorktree, error) {
	token := uuid.NewString()
	root, err := os.MkdirTemp(m.tempDir, "autopr-wt-"+token+"-")
	if err != nil {
		return nil, domain.Wrap(domain.ErrWorktreeCreation, "create temp dir", err)
	}
	// git names the worktree's admin dir after the basename
	path := filepath.Join(root, "wt-"+token[:8])

	if err := m.git.AddWorktree(ctx, path, ref); err != nil {
		if rmErr := os.RemoveAll(root); rmErr != nil {
			m.log.Warn().Err(rmErr).Str("path", root).Msg("remove temp dir after failed worktree add")
		}
		pruneCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = m.git.PruneWorktrees(pruneCtx)
		return nil, domain.Wrap(domain.ErrWorktreeCreation, "add worktree at "+ref, err)
	}

	w := &ScopedWorktree{mgr: m, root: root, path: path, ref: ref}
	m.mu.Lock()
	m.live[w] = struct{}{}
	m.mu.Unlock()
	m.log.Debug().Str("path", path).Str("ref", ref).Msg("worktree created")
	return w, nil
}

// Do runs fn inside a worktree of ref and releases it however fn returns,
// including by panic.
func (m *WorktreeManager) Do(ctx context.Context, ref string, fn func(*ScopedWorktree) error) error {
	w, err := m.Enter(ctx, ref)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(w)
}

// Close unregisters the worktree and deletes its directory. Failures are
// logged and returned but leave nothing half-tracked.
func (w *ScopedWorktree) Close() error {
	w.once.Do(func() {
		w.err = w.release()
		w.mgr.mu.Lock()
		delete(w.mgr.live, w)
		w.mgr.mu.Unlock()
	})
	return w.err
}

func (w *ScopedWorktree) release() error {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	var errs []error
	if err := w.mgr.git.RemoveWorktree(ctx, w.path); err != nil {
		w.mgr.log.Warn().Err(err).Str("path", w.path).Msg("worktree remove failed, pruning")
		errs = append(errs, err)
	}
	if err := os.RemoveAll(w.root); err != nil {
		w.mgr.log.Warn().Err(err).Str("path", w.root).Msg("temp dir removal failed")
		errs = append(errs, fmt.Errorf("remove %s: %w", w.root, err))
	}
	if len(errs) > 0 {
		if err := w.mgr.git.PruneWorktrees(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	w.mgr.log.Debug().Str("path", w.path).Msg("worktree released")
	return errors.Join(errs...)
}

// Open reports how many worktrees have not been closed yet.
func (m *WorktreeManager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Close releases every worktree still open. It is safe to call repeatedly.
func (m *WorktreeManager) Close() error {
	m.mu.Lock()
	pending := make([]*ScopedWorktree, 0, len(m.live))
	for w := range m.live {
		pending = append(pending, w)
	}
	m.mu.Unlock()

	var errs []error
	for _, w := range pending {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
