package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidCommitTypes is the enumeration of Conventional Commit types.
var ValidCommitTypes = []string{
	"feat", "fix", "docs", "style", "refactor", "perf", "test", "chore", "build", "ci", "revert",
}

// MaxTitleLength bounds commit and PR titles.
const MaxTitleLength = 100

var conventionalTitle = regexp.MustCompile(`^([a-z]+)(\([^)]*\))?!?: .+`)

// Naming is what the language model proposes for a diff.
type Naming struct {
	BranchName        string `json:"branch_name"`
	CommitTitle       string `json:"commit_title"`
	CommitDescription string `json:"commit_description,omitempty"`
}

// Normalize trims surrounding whitespace.
func (n *Naming) Normalize() {
	n.BranchName = strings.TrimSpace(n.BranchName)
	n.CommitTitle = strings.TrimSpace(n.CommitTitle)
	n.CommitDescription = strings.TrimSpace(n.CommitDescription)
}

// Validate checks a naming against branch and title rules.
func (n Naming) Validate() error {
	if err := ValidateBranchName(n.BranchName); err != nil {
		return err
	}

	if n.CommitTitle == "" {
		return fmt.Errorf("commit title is required")
	}
	if strings.Contains(n.CommitTitle, "\n") {
		return fmt.Errorf("commit title must not contain newlines")
	}
	if utf8.RuneCountInString(n.CommitTitle) > MaxTitleLength {
		return fmt.Errorf("commit title exceeds %d characters (%d)", MaxTitleLength, utf8.RuneCountInString(n.CommitTitle))
	}
	if hasControlChars(n.CommitTitle) {
		return fmt.Errorf("commit title contains control characters")
	}
	if n.CommitDescription != "" && hasControlChars(n.CommitDescription) {
		return fmt.Errorf("commit description contains control characters")
	}
	return nil
}

// CommitType returns the Conventional Commit type of the title and whether it
// is one of ValidCommitTypes.
func (n Naming) CommitType() (string, bool) {
	m := conventionalTitle.FindStringSubmatch(n.CommitTitle)
	if m == nil {
		return "", false
	}
	return m[1], isValidType(m[1])
}

// CommitMessage formats the full commit message.
func (n Naming) CommitMessage() string {
	if n.CommitDescription == "" {
		return n.CommitTitle
	}
	return n.CommitTitle + "\n\n" + n.CommitDescription
}

// ValidateBranchName accepts letters, digits, '-', '_', '/' and '.', with no
// leading or trailing dot or slash and no ".." or "//".
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name is required")
	}
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_/.", r)) {
			return fmt.Errorf("invalid branch name %q: character %q not allowed", name, r)
		}
	}
	switch {
	case strings.HasPrefix(name, ".") || strings.HasSuffix(name, "."):
		return fmt.Errorf("invalid branch name %q: leading or trailing dot", name)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("invalid branch name %q: leading or trailing slash", name)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("invalid branch name %q: leading dash", name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("invalid branch name %q: consecutive dots", name)
	case strings.Contains(name, "//"):
		return fmt.Errorf("invalid branch name %q: consecutive slashes", name)
	case strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("invalid branch name %q: .lock suffix", name)
	}
	return nil
}

func isValidType(t string) bool {
	for _, valid := range ValidCommitTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// hasControlChars checks for control characters other than newline and tab.
func hasControlChars(s string) bool {
	for _, r := range s {
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
