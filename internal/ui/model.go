package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chuckie/autopr/internal/session"
)

// errorBlinks is how many half-cycles the Errors tab flashes after a new
// error is recorded.
const errorBlinks = 10

// Tab is one of the views of the session screen.
type Tab int

const (
	TabLogs Tab = iota
	TabErrors
	TabDetails
	TabStatus
	tabCount
)

var tabNames = [...]string{"Logs", "Errors", "Details", "Status"}

func (t Tab) String() string {
	return tabNames[t]
}

// Model is the main Bubble Tea model. It renders the session and forwards
// keys and task results to the controller.
type Model struct {
	ctrl     *session.Controller
	tab      Tab
	prompt   string
	notice   string
	spinner  spinner.Model
	progress progress.Model
	tick     time.Duration
	width    int
	height   int

	seenErrors int
	blink      int
	quitting   bool
}

// New creates a new UI model for ctrl. tick drives the blink and redraw timer.
func New(ctrl *session.Controller, tick time.Duration) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	return &Model{
		ctrl:     ctrl,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		tick:     tick,
		width:    80,
		height:   24,
	}
}

// Init starts the session and the timers.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.cmdTick(), m.follow(m.ctrl.Begin()))
}

// Update handles messages and state transitions.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, msg.Width-4)

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case msgResult:
		return m, m.follow(m.ctrl.Complete(msg.result))

	case msgTick:
		m.updateBlink()
		return m, m.cmdTick()

	case msgNotice:
		m.notice = string(msg)

	case msgAutoQuit:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// updateBlink starts a blink when the journal has new errors and counts an
// active one down.
func (m *Model) updateBlink() {
	if n := m.ctrl.Journal().ErrorCount(); n > m.seenErrors {
		m.seenErrors = n
		m.blink = errorBlinks
		return
	}
	if m.blink > 0 {
		m.blink--
	}
}

// View renders the current state.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.ctrl.Snapshot()

	var b strings.Builder
	b.WriteString(m.viewTabs())
	b.WriteString("\n")
	body := ""
	switch m.tab {
	case TabLogs:
		body = m.viewLogs()
	case TabErrors:
		body = m.viewErrors()
	case TabDetails:
		body = m.viewDetails(snap)
	case TabStatus:
		body = m.viewStatus(snap)
	}
	// logs follow the newest line; everything else reads from the top
	b.WriteString(bodyStyle.Render(clipLines(body, m.bodyHeight(), m.tab == TabLogs)))
	b.WriteString("\n")
	b.WriteString(m.viewFooter(snap))
	return b.String()
}

func (m *Model) bodyHeight() int {
	// tabs, footer, progress and padding
	return max(3, m.height-8)
}

func (m *Model) viewTabs() string {
	tabs := make([]string, 0, tabCount)
	for t := TabLogs; t < tabCount; t++ {
		style := tabStyle
		switch {
		case t == m.tab:
			style = activeTabStyle
		case t == TabErrors && m.blink%2 == 1:
			style = blinkTabStyle
		}
		label := t.String()
		if t == TabErrors && m.seenErrors > 0 {
			label = fmt.Sprintf("%s (%d)", label, m.seenErrors)
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) viewLogs() string {
	var b strings.Builder
	for _, e := range m.ctrl.Journal().Entries() {
		b.WriteString(levelStyle(e.Level).Render(e.Time.Format("15:04:05") + " " + e.Message))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewErrors() string {
	errs := m.ctrl.Journal().Errors()
	if len(errs) == 0 {
		return helpStyle.Render("No errors.")
	}
	var b strings.Builder
	for _, e := range errs {
		b.WriteString(levelStyle(e.Level).Render(e.Time.Format("15:04:05") + " " + e.Message))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewDetails(s session.Snapshot) string {
	if s.Details == "" {
		return helpStyle.Render("No diff yet.")
	}
	return s.Details
}

func (m *Model) viewStatus(s session.Snapshot) string {
	rows := [][2]string{
		{"State", s.State.String()},
		{"Branch", s.Branch},
		{"Base", s.Base},
		{"Commit", s.Commit.CommitTitle},
		{"PR", s.PR.CommitTitle},
		{"LLM calls", fmt.Sprint(s.LLMCalls)},
	}
	if s.URL != "" {
		rows = append(rows, [2]string{"URL", s.URL})
	}
	if s.Outcome != session.Pending {
		rows = append(rows, [2]string{"Outcome", s.Outcome.String()})
	}

	var b strings.Builder
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		b.WriteString(labelStyle.Render(r[0]) + r[1] + "\n")
	}
	if len(s.Steps) > 0 {
		b.WriteString("\n" + titleStyle.Render("Completed") + "\n")
		for _, step := range s.Steps {
			b.WriteString("  ✓ " + step + "\n")
		}
	}
	return b.String()
}

func (m *Model) viewFooter(s session.Snapshot) string {
	var b strings.Builder
	b.WriteString(m.progress.ViewAs(s.State.Progress()))
	b.WriteString("\n")
	switch {
	case m.prompt != "":
		b.WriteString(promptStyle.Render(m.prompt))
	case !s.State.Terminal():
		b.WriteString(m.spinner.View() + " " + s.State.String() + "…")
	default:
		b.WriteString(s.State.String())
	}
	if m.notice != "" {
		b.WriteString("  " + helpStyle.Render(m.notice))
	}
	b.WriteString("\n")
	help := "←/→ tabs • q quit"
	if s.URL != "" {
		help += " • c copy URL"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func clipLines(s string, n int, tail bool) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	if tail {
		return strings.Join(lines[len(lines)-n:], "\n")
	}
	return strings.Join(lines[:n], "\n")
}

// Custom messages
type msgResult struct {
	result session.Result
}

type msgTick time.Time

type msgNotice string
