package ui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used across the terminal renderer.
type Styles struct {
	ToolName   lipgloss.Style
	ToolInfo   lipgloss.Style
	Dim        lipgloss.Style
	ErrorLabel lipgloss.Style
	ErrorText  lipgloss.Style
	Approval   lipgloss.Style
	Banner     lipgloss.Style
	DiffHeader lipgloss.Style
	DiffAdd    lipgloss.Style
	DiffRemove lipgloss.Style
	DiffHunk   lipgloss.Style
}

// DefaultStyles returns the standard color scheme. Adaptive colors keep the
// output legible on both light and dark terminals.
func DefaultStyles() Styles {
	return Styles{
		ToolName: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "39"}).
			Bold(true),
		ToolInfo: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "246"}),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "242"}),
		ErrorLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		ErrorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		Approval: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "214"}).
			Bold(true),
		Banner: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "39"}).
			Bold(true),
		DiffHeader: lipgloss.NewStyle().Bold(true),
		DiffAdd: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "78"}),
		DiffRemove: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"}),
		DiffHunk: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "242"}),
	}
}
