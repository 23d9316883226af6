package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/colloquyhq/colloquy/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	expertNameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusStyles = map[models.ExpertStatus]lipgloss.Style{
		models.ExpertStatusIdle:          lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		models.ExpertStatusResearching:   lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		models.ExpertStatusDrafting:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.ExpertStatusCollaborating: lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		models.ExpertStatusRevising:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		models.ExpertStatusDone:          lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.ExpertStatusFailed:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func renderStatus(s models.ExpertStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		style = statusStyles[models.ExpertStatusIdle]
	}
	return style.Render(string(s))
}
