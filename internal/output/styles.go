package output

import "github.com/charmbracelet/lipgloss"

// Color palette (ANSI 256).
const (
	ColorTeal     = "37"  // Accent: headers, accessions
	ColorWhite    = "255" // Titles
	ColorGray     = "245" // Labels, secondary text
	ColorDarkGray = "238" // Separators
	ColorGreen    = "70"  // Success
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings, scores
	ColorPurple   = "141" // MeSH terms
)

// Styles holds the text styles used by Writer.
type Styles struct {
	Header    lipgloss.Style
	Accession lipgloss.Style
	Title     lipgloss.Style
	Score     lipgloss.Style
	Term      lipgloss.Style
	Label     lipgloss.Style
	Dim       lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Progress  lipgloss.Style
}

// DefaultStyles returns the terminal styles.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorTeal)),
		Accession: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorTeal)),
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Score:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Term:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPurple)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Progress:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:    plain,
		Accession: plain,
		Title:     plain,
		Score:     plain,
		Term:      plain,
		Label:     plain,
		Dim:       plain,
		Success:   plain,
		Warning:   plain,
		Error:     plain,
		Progress:  plain,
	}
}
