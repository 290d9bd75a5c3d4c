package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/ui/theme"
	eventsview "arrivalwatch/internal/ui/views/events"
	sessionview "arrivalwatch/internal/ui/views/session"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type trackingPort interface {
	Status(ctx context.Context) trackingdto.StatusOutput
	Refresh(ctx context.Context) (trackingdto.StatusOutput, error)
	Dismiss(ctx context.Context, alarmID string) error
	Stop(ctx context.Context) error
	Subscribe(listener func(trackingdto.EventOutput)) func()
}

// ─── async messages ───────────────────────────────────────────────────────────

type eventMsg struct {
	event trackingdto.EventOutput
	at    time.Time
}

type statusMsg struct {
	status trackingdto.StatusOutput
	at     time.Time
}

type refreshedMsg struct {
	status trackingdto.StatusOutput
	err    error
}

type actionDoneMsg struct {
	label string
	err   error
}

type clockTickMsg time.Time

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Dismiss key.Binding
	Stop    key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Dismiss: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss alarm")),
		Stop:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop tracking")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh fix")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dismiss, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Dismiss, k.Stop, k.Refresh},
		{k.Help, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model of the watch screen. Tracking events
// arrive through a buffered channel fed by a Subscribe listener; when the
// buffer is full events are dropped and the next status poll catches up.
type Model struct {
	ctx        context.Context
	tracking   trackingPort
	sourceName string

	events      chan trackingdto.EventOutput
	unsubscribe func()

	sessionView sessionview.Model
	eventsView  eventsview.Model

	keys     keyMap
	help     help.Model
	showHelp bool
	status   string
	width    int
	height   int
}

func NewModel(ctx context.Context, tracking trackingPort, sourceName string) Model {
	events := make(chan trackingdto.EventOutput, 64)
	unsubscribe := tracking.Subscribe(func(event trackingdto.EventOutput) {
		select {
		case events <- event:
		default:
		}
	})
	return Model{
		ctx:         ctx,
		tracking:    tracking,
		sourceName:  sourceName,
		events:      events,
		unsubscribe: unsubscribe,
		sessionView: sessionview.New(),
		eventsView:  eventsview.New(),
		keys:        defaultKeys(),
		help:        help.New(),
		status:      "watching",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.sessionView.Init(),
		m.waitForEvent(),
		m.loadStatusCmd(),
		clockTick(),
	)
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return eventMsg{event: <-events, at: time.Now()}
	}
}

func (m Model) loadStatusCmd() tea.Cmd {
	return func() tea.Msg {
		return statusMsg{status: m.tracking.Status(m.ctx), at: time.Now()}
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockTickMsg(t) })
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = m.width
		m.propagateSize()

	case eventMsg:
		m.eventsView.Append(msg.at, msg.event)
		m.sessionView.SetStatus(msg.event.Status, msg.at)
		if msg.event.Kind == trackingdto.EventArrival {
			m.status = "arrived: press d to dismiss"
		}
		if msg.event.Kind == trackingdto.EventStopped {
			m.sessionView.SetStatus(trackingdto.StatusOutput{}, msg.at)
		}
		return m, m.waitForEvent()

	case statusMsg:
		m.sessionView.SetStatus(msg.status, msg.at)

	case clockTickMsg:
		return m, tea.Batch(m.loadStatusCmd(), clockTick())

	case refreshedMsg:
		if msg.err != nil {
			m.status = "refresh: " + msg.err.Error()
		} else {
			m.sessionView.SetStatus(msg.status, time.Now())
			m.status = "refreshed"
		}

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.label + ": " + msg.err.Error()
		} else {
			m.status = msg.label
		}
		cmds = append(cmds, m.loadStatusCmd())

	case tea.KeyMsg:
		if m.showHelp {
			if key.Matches(msg, m.keys.Help) || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.unsubscribe()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.Dismiss):
			return m, m.dismissCmd()
		case key.Matches(msg, m.keys.Stop):
			return m, m.stopCmd()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refreshCmd()
		}
	}

	var cmd tea.Cmd
	m.sessionView, cmd = m.sessionView.Update(msg)
	cmds = append(cmds, cmd)
	m.eventsView, cmd = m.eventsView.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) dismissCmd() tea.Cmd {
	alarmID := m.sessionView.Status().AlarmID
	return func() tea.Msg {
		err := m.tracking.Dismiss(m.ctx, alarmID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return actionDoneMsg{label: "nothing to dismiss"}
		}
		return actionDoneMsg{label: "dismissed", err: err}
	}
}

func (m Model) stopCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{label: "stopped", err: m.tracking.Stop(m.ctx)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		status, err := m.tracking.Refresh(m.ctx)
		return refreshedMsg{status: status, err: err}
	}
}

func (m *Model) propagateSize() {
	sessionH := m.height / 2
	m.sessionView.SetSize(m.width-4, sessionH)
	m.eventsView.SetSize(m.width-4, m.height-sessionH-4)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.showHelp {
		return theme.App.Render(theme.Title.Render("Keys") + "\n\n" + m.help.FullHelpView(m.keys.FullHelp()))
	}
	header := theme.Title.Render("arrivalwatch") + "  " + theme.Muted.Render(m.sourceName)
	statusBar := theme.Muted.Render(m.status) + "  " + m.help.ShortHelpView(m.keys.ShortHelp())
	body := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.sessionView.View(),
		m.eventsView.View(),
		statusBar,
	)
	return theme.App.Render(body)
}
