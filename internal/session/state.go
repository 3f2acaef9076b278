package session

import (
	"fmt"
	"strings"
)

// State is a phase of the session.
type State int

const (
	Idle State = iota
	Staging
	Diffing
	Naming
	Mutating
	PrCreation
	Done
	Cancelling
	CleanupRunning
	Exited
)

var stateNames = [...]string{
	Idle:           "idle",
	Staging:        "staging",
	Diffing:        "diffing",
	Naming:         "naming",
	Mutating:       "mutating",
	PrCreation:     "pr-creation",
	Done:           "done",
	Cancelling:     "cancelling",
	CleanupRunning: "cleanup",
	Exited:         "exited",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further work will be started in s.
func (s State) Terminal() bool {
	return s >= Done
}

// Progress is the share of the happy path completed on entering s.
func (s State) Progress() float64 {
	switch s {
	case Idle:
		return 0
	case Staging:
		return 0.1
	case Diffing:
		return 0.2
	case Naming:
		return 0.45
	case Mutating:
		return 0.7
	case PrCreation:
		return 0.85
	default:
		return 1
	}
}

// Outcome is how a session ended.
type Outcome int

const (
	Pending Outcome = iota
	Completed
	NoOp
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case NoOp:
		return "nothing to do"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// ExitCode maps the outcome to the process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case Completed, NoOp:
		return 0
	case Cancelled:
		return 130
	default:
		return 1
	}
}

// Report is the summary printed once the terminal is restored. Steps lists
// exactly the side effects that completed.
type Report struct {
	Outcome  Outcome
	Steps    []string
	URL      string
	Err      error
	LLMCalls int
}

// ExitCode is the process exit status for the report.
func (r Report) ExitCode() int {
	return r.Outcome.ExitCode()
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "autopr: %s\n", r.Outcome)
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "  ✓ %s\n", s)
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "  %s\n", r.URL)
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "  error: %v\n", r.Err)
	}
	return b.String()
}
