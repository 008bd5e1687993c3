package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/taru-edu/taru/internal/ui/theme"
)

// ProgressBar is a horizontal bar for a whole-number percentage.
type ProgressBar struct {
	Label   string
	Percent int
	Width   int
}

func NewProgressBar(label string, percent, width int) ProgressBar {
	return ProgressBar{Label: label, Percent: percent, Width: width}
}

func (p ProgressBar) View() string {
	var out string
	if p.Label != "" {
		out = lipgloss.NewStyle().Foreground(theme.Text).Render(p.Label) + "  "
	}

	// 6 columns for "  100%".
	barWidth := max(p.Width-lipgloss.Width(out)-6, 4)
	filled := min(max(barWidth*p.Percent/100, 0), barWidth)

	out += theme.ProgressFilled.Render(strings.Repeat(" ", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled)) +
		lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("  %d%%", min(max(p.Percent, 0), 100)))
	return out
}
