// Package layout draws the console's header and footer bars.
package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/mentalmath/internal/ui/theme"
)

// DefaultWidth is used before the terminal reports its size.
const DefaultWidth = 60

// KeyHint represents a key binding hint shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

func bar(width int) lipgloss.Style {
	if width <= 0 {
		width = DefaultWidth
	}
	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)
}

// RenderHeader renders the title on the left and the highest unlocked level
// on the right.
func RenderHeader(title string, unlocked, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	left := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(" 🧮 " + title)
	right := lipgloss.NewStyle().Foreground(theme.Accent).Render(fmt.Sprintf("unlocked: level %d ", unlocked))

	// border and padding take four columns
	gap := width - 4 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return bar(width).Render(left + strings.Repeat(" ", gap) + right)
}

// RenderFooter renders the footer with key hints.
func RenderFooter(hints []KeyHint, width int) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		part := lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(h.Key) +
			" " +
			lipgloss.NewStyle().Foreground(theme.TextDim).Render(h.Description)
		parts = append(parts, part)
	}
	return bar(width).Render(" " + strings.Join(parts, "   "))
}
