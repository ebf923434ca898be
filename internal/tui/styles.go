package tui

import (
	"github.com/MEKXH/reviewdesk/internal/session"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#8E4EC6") // Purple

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(accent).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1)

	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("238"))
	mainStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#E06C75")).
			Padding(1, 2)

	levelColors = map[session.Level]lipgloss.Color{
		session.LevelInfo:  lipgloss.Color("#2E8B57"), // SeaGreen
		session.LevelWarn:  lipgloss.Color("#E5C07B"),
		session.LevelError: lipgloss.Color("#E06C75"),
	}
)

func noticeStyle(level session.Level) lipgloss.Style {
	color, ok := levelColors[level]
	if !ok {
		color = lipgloss.Color("245")
	}
	return lipgloss.NewStyle().Foreground(color)
}
