// ABOUTME: Terminal styles for command output
// ABOUTME: Status colors follow the sync_state values
package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/card2box/db"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	serviceStyle = lipgloss.NewStyle().
			Bold(true).
			Width(12)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case db.StatusIdle, "ok":
		return idleStyle
	case db.StatusSyncing:
		return syncingStyle
	default:
		return errorStyle
	}
}
