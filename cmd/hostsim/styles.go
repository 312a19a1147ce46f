package main

import "github.com/charmbracelet/lipgloss"

type styles struct {
	App     lipgloss.Style
	Title   lipgloss.Style
	Panel   lipgloss.Style
	Heading lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Online  lipgloss.Style
	Offline lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Prompt  lipgloss.Style
	Help    lipgloss.Style
}

func defaultStyles() styles {
	subtle := lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special := lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	muted := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	text := lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}

	return styles{
		App: lipgloss.NewStyle().Padding(1, 2),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(highlight).
			Padding(0, 1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1).
			MarginRight(1),

		Heading: lipgloss.NewStyle().Foreground(highlight).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(muted).Width(12),
		Value:   lipgloss.NewStyle().Foreground(text),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Online:  lipgloss.NewStyle().Foreground(special).Bold(true),
		Offline: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		Success: lipgloss.NewStyle().Foreground(special),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCC00")),
		Prompt:  lipgloss.NewStyle().Foreground(highlight),
		Help:    lipgloss.NewStyle().Foreground(muted).MarginTop(1),
	}
}
