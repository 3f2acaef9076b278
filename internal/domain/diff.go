package domain

import "strings"

// EmptyTree is the hash git assigns to the empty tree. Diffing against it
// yields every tracked file.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DiffKey identifies a diff by its base commit and a descriptor of its head
// content. Two keys are equal iff both fields are textually equal.
type DiffKey struct {
	Base string
	Head string
}

// TreeHead describes head content by a git tree hash. A staged index and the
// commit later created from it share the same tree hash.
func TreeHead(tree string) string {
	return "tree:" + tree
}

// WorktreeHead describes unstaged working-tree content by a fingerprint of
// its diff and untracked files.
func WorktreeHead(fingerprint string) string {
	return "worktree:" + fingerprint
}

func (k DiffKey) String() string {
	return k.Base + ".." + k.Head
}

// IsZero reports whether the key was never set.
func (k DiffKey) IsZero() bool {
	return k.Base == "" && k.Head == ""
}

// CachedDiff is a computed patch and the paths it touches.
type CachedDiff struct {
	Key   DiffKey
	Text  string
	Files []string
}

// Empty reports whether the diff carries no changes.
func (d CachedDiff) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}
