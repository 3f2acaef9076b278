// Package process runs external commands (git, gh) with an explicit working
// directory. The process-wide current directory is never changed.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Command describes a single external invocation.
type Command struct {
	Dir   string
	Name  string
	Args  []string
	Stdin []byte
}

// String renders the command for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the captured outcome of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// OK reports whether the command exited with status 0.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Failed returns the exit code and true when the command exited non-zero.
func (r Result) Failed() (int, bool) {
	return r.ExitCode, r.ExitCode != 0
}

// Err converts a non-zero result into an *ExitError; it returns nil on success.
func (r Result) Err(cmd Command) error {
	if r.OK() {
		return nil
	}
	return &ExitError{Cmd: cmd.String(), Code: r.ExitCode, Stderr: strings.TrimSpace(string(r.Stderr))}
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Cmd, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Cmd, e.Code, e.Stderr)
}

// Runner abstracts command execution for testability.
type Runner interface {
	// Run blocks until the command exits. A non-zero exit is reported through
	// Result.ExitCode, not as an error; err is set only when the command could
	// not be started or the context was cancelled.
	Run(ctx context.Context, cmd Command) (Result, error)

	// Start launches the command without waiting for it.
	Start(ctx context.Context, cmd Command) (*Handle, error)
}

// ExecRunner executes commands using os/exec.
type ExecRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and captures its output.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := build(ctx, cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	return finish(ctx, cmd, stdout.Bytes(), stderr.Bytes(), err)
}

// Start launches cmd in the background.
func (r *ExecRunner) Start(ctx context.Context, cmd Command) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)
	c := build(ctx, cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", cmd.Name, err)
	}

	h := newHandle(cancel)
	go func() {
		err := c.Wait()
		res, err := finish(ctx, cmd, stdout.Bytes(), stderr.Bytes(), err)
		h.complete(res, err)
	}()
	return h, nil
}

func build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	return c
}

func finish(ctx context.Context, cmd Command, stdout, stderr []byte, err error) (Result, error) {
	res := Result{Stdout: stdout, Stderr: stderr}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", cmd.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("run %s: %w", cmd.Name, err)
}

// Handle tracks a command started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	res    Result
	err    error
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{cancel: cancel, done: make(chan struct{})}
}

func (h *Handle) complete(res Result, err error) {
	h.once.Do(func() {
		h.res, h.err = res, err
		h.cancel()
		close(h.done)
	})
}

// Done is closed once the command has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the command exits.
func (h *Handle) Wait() (Result, error) {
	<-h.done
	return h.res, h.err
}

// Cancel kills the command if it is still running. Wait still has to be
// called (or Done observed) to learn the final result.
func (h *Handle) Cancel() {
	h.cancel()
}
