package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/ui/theme"
)

const maxLines = 200

// Model is a scrollable log of tracking events, newest at the bottom.
type Model struct {
	viewport viewport.Model
	lines    []string
	width    int
}

func New() Model {
	return Model{viewport: viewport.New(0, 0)}
}

func (m *Model) SetSize(w, h int) {
	m.width = w
	m.viewport.Width = w - 4
	m.viewport.Height = max(h-4, 1)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
}

// Append records one event and scrolls to it.
func (m *Model) Append(at time.Time, event trackingdto.EventOutput) {
	m.lines = append(m.lines, Format(at, event))
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) Len() int { return len(m.lines) }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	body := theme.Title.Render("Events") + "\n"
	if len(m.lines) == 0 {
		body += theme.Muted.Render("waiting for location updates")
	} else {
		body += m.viewport.View()
	}
	style := theme.Pane
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	return style.Render(body)
}

// Format renders one event as a log line.
func Format(at time.Time, event trackingdto.EventOutput) string {
	stamp := theme.Muted.Render(at.Format("15:04:05"))
	switch event.Kind {
	case trackingdto.EventPhaseChanged:
		return fmt.Sprintf("%s phase %s -> %s", stamp, event.From, event.To)
	case trackingdto.EventArrival:
		return fmt.Sprintf("%s %s", stamp, theme.Hot.Render("arrived at "+event.Status.Title))
	case trackingdto.EventTick:
		return fmt.Sprintf("%s fix  %s to go at %.1f km/h", stamp, geo.FormatDistance(event.Status.DistanceM), event.Status.SpeedKmh)
	default:
		return fmt.Sprintf("%s %s", stamp, event.Kind)
	}
}
