package openai

import (
	"strings"

	"github.com/chuckie/autopr/internal/ports"
)

const systemPrompt = `You prepare GitHub pull requests from a git diff.
Reply with a JSON object that has exactly these keys: "branch_name", "commit_title", "commit_details".

branch_name:
- only letters, digits, '-', '_', '.' and at most one '/'
- no spaces, colons, parentheses or other punctuation
- must not start or end with '.', and must not contain '..'
- good: "feat/worktree-diff", "fix-push-upstream", "release/v1.2.0"
- bad: "feat(api): x", "fix memory leak", ".hidden", "a..b"

commit_title:
- a Conventional Commits title with a scope, and '!' for breaking changes,
  e.g. "feat(api)!: send email when an order ships"
- at most 100 characters, one line
- concise and action oriented ("supports" rather than "provides support for")
- claim nothing the diff does not show

commit_details:
- null for a very small change
- otherwise minimal markdown describing the major changes, using the sections
  "Problem (Why?)", "Solution (What?)" and "Details (How?)" only when the
  input supports them, plus "Impact" for breaking changes
- mention test or comment updates in a single line at most
- when open issues are provided and truly relevant, end with
  "Relates to #X" or "Closes #X" (several as "Closes #X, #Y"); otherwise omit the line`

// buildMessages renders the system and user messages for a naming request.
func buildMessages(input ports.NamingInput) (system, user string) {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	if input.What != "" {
		sb.WriteString("\n\nUser provided 'what': " + input.What)
	}
	if input.Why != "" {
		sb.WriteString("\n\nUser provided 'why': " + input.Why)
	}
	if input.BiggerPicture != "" {
		sb.WriteString("\n\nUser provided 'bigger picture': " + input.BiggerPicture)
	}
	system = sb.String()

	sb.Reset()
	if len(input.Files) > 0 {
		sb.WriteString("Changed files:\n")
		for _, f := range input.Files {
			sb.WriteString("- " + f + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Diff:\n")
	sb.WriteString(input.Diff)
	sb.WriteString("\n\nOpen GitHub issues:\n")
	if strings.TrimSpace(input.Issues) == "" || strings.TrimSpace(input.Issues) == "[]" {
		sb.WriteString("No open issues")
	} else {
		sb.WriteString(input.Issues)
	}
	return system, sb.String()
}
