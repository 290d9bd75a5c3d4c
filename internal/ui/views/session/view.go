package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/ui/components"
	"arrivalwatch/internal/ui/theme"
)

// Model renders the current tracking session. It holds no ports: the root
// model feeds it status snapshots.
type Model struct {
	status  trackingdto.StatusOutput
	now     time.Time
	spinner spinner.Model
	width   int
	height  int
}

func New() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.Hot
	return Model{spinner: s}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) SetStatus(status trackingdto.StatusOutput, now time.Time) {
	m.status = status
	m.now = now
}

func (m Model) Status() trackingdto.StatusOutput { return m.status }

func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	st := m.status
	var sb strings.Builder
	if !st.Active {
		sb.WriteString(theme.Title.Render("No active alarm") + "\n\n")
		sb.WriteString(theme.Muted.Render("start one with `arrivalwatch track` or wait for a routine"))
		return m.frame(sb.String())
	}

	header := theme.Title.Render(st.Title) + "  " + theme.PhaseBadge(st.Phase)
	if st.ArrivalTriggered {
		header += "  " + theme.Hot.Render("ARRIVED")
	} else {
		header += "  " + m.spinner.View()
	}
	sb.WriteString(header + "\n\n")

	gaugeWidth := m.width - 16
	if gaugeWidth > 48 {
		gaugeWidth = 48
	}
	sb.WriteString(components.Gauge(st.Progress, gaugeWidth) + "\n\n")

	rows := [][2]string{
		{"distance", geo.FormatDistance(st.DistanceM)},
		{"speed", fmt.Sprintf("%.1f km/h", st.SpeedKmh)},
		{"traveled", geo.FormatDistance(st.TraveledDistanceM)},
		{"route points", fmt.Sprintf("%d", st.RoutePoints)},
		{"radius", geo.FormatDistance(st.RadiusM)},
		{"target", fmt.Sprintf("%.5f, %.5f", st.Latitude, st.Longitude)},
	}
	if !st.StartedAt.IsZero() && !m.now.IsZero() {
		rows = append(rows, [2]string{"elapsed", m.now.Sub(st.StartedAt).Round(time.Second).String()})
	}
	if st.GeofenceSetupFailed {
		rows = append(rows, [2]string{"geofence", "unavailable, polling instead"})
	}
	for _, row := range rows {
		sb.WriteString(theme.Muted.Render(fmt.Sprintf("%-13s", row[0])) + row[1] + "\n")
	}
	sb.WriteString(theme.Muted.Render("alarm " + st.AlarmID))
	return m.frame(sb.String())
}

func (m Model) frame(body string) string {
	style := theme.PaneActive
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	return style.Render(body)
}
