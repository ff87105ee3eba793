package dashboard

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent  = lipgloss.Color("39")  // bright blue
	colorMuted   = lipgloss.Color("240") // dim gray
	colorSubtle  = lipgloss.Color("245")
	colorText    = lipgloss.Color("252")
	colorBright  = lipgloss.Color("15")
	colorBar     = lipgloss.Color("236")
	colorHilight = lipgloss.Color("24")
)

var (
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())
	paneTitle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	barStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(colorText).Background(colorBar)

	rowTitle       = lipgloss.NewStyle().Bold(true)
	rowMeta        = lipgloss.NewStyle().Foreground(colorSubtle)
	rowTitleCursor = rowTitle.Foreground(colorBright).Background(colorHilight)
	rowMetaCursor  = lipgloss.NewStyle().Foreground(colorText).Background(colorHilight)

	fieldLabel  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(14)
	detailTitle = lipgloss.NewStyle().Bold(true).Foreground(colorBright).MarginBottom(1)
	ruleStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	bodyStyle   = lipgloss.NewStyle().Foreground(colorText)
	placeholder = lipgloss.NewStyle().Foreground(colorSubtle).Italic(true)

	pickerTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(1, 0, 1, 2)
	pickerRow    = lipgloss.NewStyle().Padding(0, 0, 0, 4)
	pickerCursor = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 0, 0, 2)
	pickerTerms  = lipgloss.NewStyle().Foreground(colorSubtle)
	pickerHint   = lipgloss.NewStyle().Foreground(colorMuted).Padding(1, 0, 0, 2)
)

// focusColor is the border and title color of a pane.
func focusColor(focused bool) lipgloss.Color {
	if focused {
		return colorAccent
	}
	return colorMuted
}
