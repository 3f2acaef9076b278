package ui

import (
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chuckie/autopr/internal/session"
)

// doneLinger keeps the finished screen up long enough to read (and copy) the
// PR URL.
const doneLinger = 1500 * time.Millisecond

type msgAutoQuit struct{}

// follow turns a controller step into a command.
func (m *Model) follow(step session.Step) tea.Cmd {
	switch {
	case step.Quit:
		if m.ctrl.State() == session.Done && !m.quitting {
			m.prompt = ""
			return tea.Tick(doneLinger, func(time.Time) tea.Msg { return msgAutoQuit{} })
		}
		m.quitting = true
		return tea.Quit
	case step.Run != nil:
		run := step.Run
		return func() tea.Msg {
			return msgResult{result: run()}
		}
	case step.Prompt != "":
		m.prompt = step.Prompt
	}
	return nil
}

// handleKey handles keybindings.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		m.prompt = ""
		step := m.ctrl.Quit()
		if step.Quit {
			m.quitting = true
			return tea.Quit
		}
		return m.follow(step)
	case "y", "Y":
		if m.prompt != "" {
			m.prompt = ""
			return m.follow(m.ctrl.Answer(true))
		}
	case "n", "N":
		if m.prompt != "" {
			m.prompt = ""
			return m.follow(m.ctrl.Answer(false))
		}
	case "right", "l", "tab":
		m.tab = (m.tab + 1) % tabCount
	case "left", "h", "shift+tab":
		m.tab = (m.tab + tabCount - 1) % tabCount
	case "c":
		if url := m.ctrl.Snapshot().URL; url != "" {
			return cmdCopy(url)
		}
	}
	return nil
}

func (m *Model) cmdTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return msgTick(t)
	})
}

func cmdCopy(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return msgNotice("copy failed: " + err.Error())
		}
		return msgNotice("copied")
	}
}
