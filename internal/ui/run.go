package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chuckie/autopr/internal/session"
)

// programTerminal hands the screen back by stopping the program and waiting
// for its event loop to exit.
type programTerminal struct {
	p    *tea.Program
	done chan struct{}
	once sync.Once
}

func (t *programTerminal) Restore() error {
	t.once.Do(func() {
		t.p.Quit()
		<-t.done
	})
	return nil
}

// Run shows the session on the alternate screen until it ends, then cleans
// up and returns the final report. Cancelling ctx stops the program.
func Run(ctx context.Context, ctrl *session.Controller, tick time.Duration) (session.Report, error) {
	p := tea.NewProgram(New(ctrl, tick), tea.WithAltScreen(), tea.WithContext(ctx))
	term := &programTerminal{p: p, done: make(chan struct{})}
	ctrl.AttachTerminal(term)

	_, err := p.Run()
	close(term.done)
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}

	report := ctrl.Cleanup()
	return report, err
}
