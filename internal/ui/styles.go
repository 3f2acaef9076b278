package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/chuckie/autopr/internal/domain"
)

var (
	accent = lipgloss.Color("205")
	muted  = lipgloss.Color("241")
	red    = lipgloss.Color("196")
	green  = lipgloss.Color("42")
	yellow = lipgloss.Color("214")

	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(muted)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(accent).Underline(true)
	blinkTabStyle  = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("231")).Background(red)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle  = lipgloss.NewStyle().Foreground(muted).Width(12)
	helpStyle   = lipgloss.NewStyle().Foreground(muted)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	bodyStyle   = lipgloss.NewStyle().Padding(1, 1)
)

func levelStyle(l domain.Level) lipgloss.Style {
	switch l {
	case domain.LevelSuccess:
		return lipgloss.NewStyle().Foreground(green)
	case domain.LevelWarn:
		return lipgloss.NewStyle().Foreground(yellow)
	case domain.LevelError:
		return lipgloss.NewStyle().Foreground(red)
	default:
		return lipgloss.NewStyle()
	}
}
