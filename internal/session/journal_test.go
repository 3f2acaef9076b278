package session

import (
	"testing"

	"github.com/chuckie/autopr/internal/domain"
)

func TestJournal(t *testing.T) {
	j := NewJournal()
	j.Report(domain.LevelInfo, "inspecting")
	j.Report(domain.LevelError, "push failed")
	j.Report(domain.LevelSuccess, "pushed")

	if got := len(j.Entries()); got != 3 {
		t.Fatalf("entries = %d, want 3", got)
	}
	errs := j.Errors()
	if len(errs) != 1 || errs[0].Message != "push failed" || j.ErrorCount() != 1 {
		t.Errorf("errors = %+v", errs)
	}
	if j.Entries()[2].Level != domain.LevelSuccess {
		t.Errorf("levels not kept: %+v", j.Entries())
	}
}

func TestOutcomeExitCodes(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    int
	}{
		{Completed, 0},
		{NoOp, 0},
		{Cancelled, 130},
		{Failed, 1},
		{Pending, 1},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			if got := tt.outcome.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStateNames(t *testing.T) {
	if Cancelling.String() != "cancelling" || State(99).String() != "state(99)" {
		t.Errorf("unexpected names %q %q", Cancelling, State(99))
	}
	if !Done.Terminal() || Mutating.Terminal() {
		t.Error("Terminal() misclassifies states")
	}
}
