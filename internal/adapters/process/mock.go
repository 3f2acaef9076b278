package process

import (
	"context"
	"sync"
)

// Matcher reports whether a command should receive a rule's response.
type Matcher func(cmd Command) bool

// Call records a command seen by MockRunner.
type Call struct {
	Dir   string
	Name  string
	Args  []string
	Stdin []byte
}

type rule struct {
	match Matcher
	res   Result
	err   error
}

// MockRunner returns canned results for commands, matching rules in
// registration order. Unmatched commands go to the fallback, or succeed with
// empty output when there is none.
type MockRunner struct {
	mu       sync.Mutex
	rules    []rule
	calls    []Call
	fallback Runner
}

// NewMockRunner creates a MockRunner delegating unmatched commands to fallback.
func NewMockRunner(fallback Runner) *MockRunner {
	return &MockRunner{fallback: fallback}
}

// On registers a rule.
func (m *MockRunner) On(match Matcher, res Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{match: match, res: res, err: err})
}

// OnPrefix matches commands named name whose arguments start with prefix.
func (m *MockRunner) OnPrefix(name string, prefix []string, res Result) {
	m.On(func(cmd Command) bool {
		if cmd.Name != name || len(cmd.Args) < len(prefix) {
			return false
		}
		for i, a := range prefix {
			if cmd.Args[i] != a {
				return false
			}
		}
		return true
	}, res, nil)
}

// Calls returns a copy of every recorded invocation.
func (m *MockRunner) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockRunner) lookup(cmd Command) (*rule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Dir: cmd.Dir, Name: cmd.Name, Args: append([]string(nil), cmd.Args...), Stdin: cmd.Stdin})
	for i := range m.rules {
		if m.rules[i].match(cmd) {
			r := m.rules[i]
			return &r, true
		}
	}
	return nil, false
}

// Run returns the first matching rule's result.
func (m *MockRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if r, ok := m.lookup(cmd); ok {
		return r.res, r.err
	}
	if m.fallback != nil {
		return m.fallback.Run(ctx, cmd)
	}
	return Result{}, nil
}

// Start returns a handle that is already complete.
func (m *MockRunner) Start(ctx context.Context, cmd Command) (*Handle, error) {
	_, cancel := context.WithCancel(ctx)
	h := newHandle(cancel)
	if r, ok := m.lookup(cmd); ok {
		h.complete(r.res, r.err)
		return h, nil
	}
	if m.fallback != nil {
		cancel()
		return m.fallback.Start(ctx, cmd)
	}
	h.complete(Result{}, nil)
	return h, nil
}
