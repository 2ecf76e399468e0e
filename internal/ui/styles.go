package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary     = lipgloss.Color("#101F38")
	Accent      = lipgloss.Color("#8BC34A")
	Muted       = lipgloss.Color("#8a94a6")
	Border      = lipgloss.Color("#dce0e5")
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Info        = lipgloss.Color("#2196F3")
)

// Styles holds the styled components used by every page.
type Styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Help     lipgloss.Style
	Label    lipgloss.Style
	Focused  lipgloss.Style
	Button   lipgloss.Style
	Disabled lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Dialog   lipgloss.Style
	Spinner  lipgloss.Style
}

// NewStyles builds the default style set. NO_COLOR disables colours.
func NewStyles() Styles {
	if os.Getenv("NO_COLOR") != "" {
		plain := lipgloss.NewStyle()
		return Styles{
			Header: plain.Bold(true), Title: plain.Bold(true), Body: plain,
			Muted: plain, Help: plain, Label: plain, Focused: plain.Bold(true),
			Button: plain, Disabled: plain, Error: plain, Success: plain,
			Dialog: plain.Border(lipgloss.NormalBorder()).Padding(0, 1), Spinner: plain,
		}
	}
	return Styles{
		Header: lipgloss.NewStyle().
			Background(Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Title: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1),
		Body:  lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle().Foreground(Muted),
		Help: lipgloss.NewStyle().
			Foreground(Muted).
			MarginTop(1),
		Label:   lipgloss.NewStyle().Width(10),
		Focused: lipgloss.NewStyle().Foreground(Info).Bold(true),
		Button: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(Info).
			Padding(0, 1),
		Disabled: lipgloss.NewStyle().
			Foreground(Muted).
			Background(Border).
			Padding(0, 1),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Success: lipgloss.NewStyle().Foreground(Success).Bold(true),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2).
			MarginTop(1),
		Spinner: lipgloss.NewStyle().Foreground(Accent),
	}
}
