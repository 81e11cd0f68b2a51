package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates styles bound to r, so color support follows r's output.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}
