package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"arrivalwatch/internal/ui/theme"
)

var (
	gaugeFull  = lipgloss.NewStyle().Foreground(theme.Green)
	gaugeEmpty = lipgloss.NewStyle().Foreground(theme.Surface1)
)

// Gauge renders a horizontal bar for fraction in [0, 1] followed by the
// percentage. Out-of-range values are clamped.
func Gauge(fraction float64, width int) string {
	if width < 4 {
		width = 4
	}
	if math.IsNaN(fraction) {
		fraction = 0
	}
	fraction = math.Max(0, math.Min(1, fraction))
	filled := int(math.Round(fraction * float64(width)))
	bar := gaugeFull.Render(strings.Repeat("█", filled)) + gaugeEmpty.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, fraction*100)
}
