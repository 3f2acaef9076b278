package git

import (
	"fmt"
	"sort"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// refReader answers read-only ref queries in-process through go-git. Callers
// fall back to the git CLI whenever it returns an error (unsupported
// repository extensions, exotic ref storage).
type refReader struct {
	dir  string
	once sync.Once
	repo *gogit.Repository
	err  error
}

func newRefReader(dir string) *refReader {
	return &refReader{dir: dir}
}

func (r *refReader) open() (*gogit.Repository, error) {
	r.once.Do(func() {
		r.repo, r.err = gogit.PlainOpenWithOptions(r.dir, &gogit.PlainOpenOptions{
			DetectDotGit:          true,
			EnableDotGitCommonDir: true,
		})
	})
	return r.repo, r.err
}

// branches lists local branch short names, sorted.
func (r *refReader) branches() ([]string, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// resolve turns a revision (branch, remote branch, HEAD, hash) into a commit
// hash.
func (r *refReader) resolve(rev string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	h, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rev, err)
	}
	return h.String(), nil
}
