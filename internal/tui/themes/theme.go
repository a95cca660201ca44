// Package themes holds the chat simulator's lipgloss styles.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	UserName  lipgloss.Style
	BotName   lipgloss.Style
	UserText  lipgloss.Style
	BotText   lipgloss.Style
	Error     lipgloss.Style
	Status    lipgloss.Style
	Input     lipgloss.Style
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Danger    lipgloss.Color
}

// Default is the default theme.
var Default = Theme{
	Primary:   lipgloss.Color("#2dd4bf"),
	Secondary: lipgloss.Color("#a78bfa"),
	Muted:     lipgloss.Color("#737373"),
	Danger:    lipgloss.Color("#ef4444"),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#2dd4bf")),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3a3a3")),
	UserName: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#a78bfa")),
	BotName: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#2dd4bf")),
	UserText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#fafafa")).
		PaddingLeft(2),
	BotText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#e5e5e5")).
		PaddingLeft(2),
	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ef4444")).
		PaddingLeft(2),
	Status: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#737373")),
	Input: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(0, 1),
}
