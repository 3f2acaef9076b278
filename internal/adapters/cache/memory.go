package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/chuckie/autopr/internal/domain"
)

// Memo is an in-memory, process-wide memo keyed by DiffKey. compute runs at
// most once per key: a concurrent miss on a key already being computed
// blocks on that computation and shares its result. Failed computations are
// not stored, so a later call may try again.
type Memo[V any] struct {
	mu      sync.RWMutex
	entries map[domain.DiffKey]V
	group   singleflight.Group
}

// NewMemo creates an empty memo.
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{entries: make(map[domain.DiffKey]V)}
}

// Get returns the stored value for key.
func (m *Memo[V]) Get(key domain.DiffKey) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// GetOrCompute returns the value for key, running compute on a miss. hit is
// true when the value came from the memo or from another caller's in-flight
// computation.
func (m *Memo[V]) GetOrCompute(ctx context.Context, key domain.DiffKey, compute func(context.Context) (V, error)) (v V, hit bool, err error) {
	if v, ok := m.Get(key); ok {
		return v, true, nil
	}

	computed := false
	res, err, _ := m.group.Do(key.String(), func() (interface{}, error) {
		// Another caller may have stored the key between Get and Do.
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		computed = true
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[key] = v
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	v, ok := res.(V)
	if !ok {
		var zero V
		return zero, false, fmt.Errorf("memo: unexpected value type %T", res)
	}
	return v, !computed, nil
}

// Clear empties the memo.
func (m *Memo[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[domain.DiffKey]V)
}

// Size returns the number of stored entries.
func (m *Memo[V]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// PatchCache memoizes computed diffs and the naming produced for each diff.
// Both diff call sites (uncommitted and full-branch) share it, so a key they
// agree on is computed and named once.
type PatchCache struct {
	diffs   *Memo[domain.CachedDiff]
	namings *Memo[domain.Naming]
}

// NewPatchCache creates an empty cache.
func NewPatchCache() *PatchCache {
	return &PatchCache{
		diffs:   NewMemo[domain.CachedDiff](),
		namings: NewMemo[domain.Naming](),
	}
}

// GetOrCompute returns the diff for key, computing it at most once.
func (c *PatchCache) GetOrCompute(ctx context.Context, key domain.DiffKey, compute func(context.Context) (domain.CachedDiff, error)) (domain.CachedDiff, bool, error) {
	return c.diffs.GetOrCompute(ctx, key, compute)
}

// GetOrComputeNaming returns the naming for key, calling the model at most
// once. A naming is only ever served for the key it was produced from.
func (c *PatchCache) GetOrComputeNaming(ctx context.Context, key domain.DiffKey, call func(context.Context) (domain.Naming, error)) (domain.Naming, bool, error) {
	return c.namings.GetOrCompute(ctx, key, call)
}

// Clear empties both memos.
func (c *PatchCache) Clear() {
	c.diffs.Clear()
	c.namings.Clear()
}

// Size returns the number of cached diffs and namings.
func (c *PatchCache) Size() (diffs, namings int) {
	return c.diffs.Size(), c.namings.Size()
}
