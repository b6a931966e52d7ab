package tui

import "github.com/charmbracelet/lipgloss"

// Static styles for content elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	HiddenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	FlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	MineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	EmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3C3C3C"))

	CursorStyle = lipgloss.NewStyle().
			Reverse(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// numberStyles colour adjacent-mine counts 1 through 8.
var numberStyles = []lipgloss.Style{
	lipgloss.NewStyle().Foreground(lipgloss.Color("#4FC3F7")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("#81C784")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("#E57373")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("#7986CB")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("#A1887F")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("#4DB6AC")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E")),
}
