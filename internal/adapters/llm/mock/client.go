package mock

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/ports"
)

// Client is a mock LLM implementation for offline runs.
type Client struct{}

// NewClient creates a new mock LLM client.
func NewClient() *Client {
	return &Client{}
}

var patterns = []struct {
	commitType string
	slug       string
	subject    string
}{
	{"feat", "add-functionality", "add new functionality"},
	{"fix", "resolve-issue", "resolve stability issue"},
	{"refactor", "simplify-logic", "simplify internal logic"},
	{"docs", "update-docs", "update documentation"},
	{"chore", "maintenance", "perform routine maintenance"},
}

// SuggestNaming returns a naming derived deterministically from the diff.
func (c *Client) SuggestNaming(ctx context.Context, input ports.NamingInput) (domain.Naming, error) {
	if err := ctx.Err(); err != nil {
		return domain.Naming{}, domain.Wrap(domain.ErrCancelled, "mock", err)
	}
	hash := hashString(input.Diff)
	p := patterns[hash%uint64(len(patterns))]
	short := fmt.Sprintf("%04x", hash&0xffff)

	return domain.Naming{
		BranchName:        p.commitType + "/" + p.slug + "-" + short,
		CommitTitle:       p.commitType + ": " + p.subject,
		CommitDescription: fmt.Sprintf("Touches %d file(s).", len(input.Files)),
	}, nil
}

// hashString computes a simple hash of a string for deterministic behavior.
func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
