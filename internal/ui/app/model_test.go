package app

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	apperrors "arrivalwatch/internal/platform/errors"
)

type fakeTracking struct {
	status       trackingdto.StatusOutput
	listener     func(trackingdto.EventOutput)
	dismissed    []string
	unsubscribed bool
}

func (f *fakeTracking) Status(context.Context) trackingdto.StatusOutput { return f.status }

func (f *fakeTracking) Refresh(context.Context) (trackingdto.StatusOutput, error) {
	if !f.status.Active {
		return trackingdto.StatusOutput{}, apperrors.ErrNoActiveSession
	}
	return f.status, nil
}

func (f *fakeTracking) Dismiss(_ context.Context, alarmID string) error {
	f.dismissed = append(f.dismissed, alarmID)
	return nil
}

func (f *fakeTracking) Stop(context.Context) error { return nil }

func (f *fakeTracking) Subscribe(listener func(trackingdto.EventOutput)) func() {
	f.listener = listener
	return func() { f.unsubscribed = true }
}

func activeStatus() trackingdto.StatusOutput {
	return trackingdto.StatusOutput{
		Active: true, Phase: "ACTIVE_TRACKING", AlarmID: "alarm-1", Title: "Office",
		DistanceM: 850, SpeedKmh: 24, Progress: 0.6, RadiusM: 300,
	}
}

func TestModelRendersEventsFromSubscription(t *testing.T) {
	t.Parallel()
	fake := &fakeTracking{}
	model := NewModel(context.Background(), fake, "simulated")
	require.NotNil(t, fake.listener)

	fake.listener(trackingdto.EventOutput{Kind: trackingdto.EventTick, Status: activeStatus()})
	msg := model.waitForEvent()()
	updated, cmd := model.Update(msg)
	require.NotNil(t, cmd)
	m := updated.(Model)

	assert.Equal(t, 1, m.eventsView.Len())
	assert.Equal(t, "alarm-1", m.sessionView.Status().AlarmID)
	view := m.View()
	assert.True(t, strings.Contains(view, "Office"))
	assert.True(t, strings.Contains(view, "850 m"))
}

func TestModelArrivalAndDismiss(t *testing.T) {
	t.Parallel()
	fake := &fakeTracking{}
	model := NewModel(context.Background(), fake, "simulated")

	status := activeStatus()
	status.ArrivalTriggered = true
	updated, _ := model.Update(eventMsg{event: trackingdto.EventOutput{Kind: trackingdto.EventArrival, Status: status}, at: time.Now()})
	m := updated.(Model)
	assert.Contains(t, m.status, "arrived")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.NotNil(t, cmd)
	done := cmd()
	assert.Equal(t, actionDoneMsg{label: "dismissed"}, done)
	assert.Equal(t, []string{"alarm-1"}, fake.dismissed)

	updated, _ = updated.(Model).Update(done)
	assert.Equal(t, "dismissed", updated.(Model).status)
}

func TestModelRefreshWithoutSession(t *testing.T) {
	t.Parallel()
	model := NewModel(context.Background(), &fakeTracking{}, "none")

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	updated, _ := model.Update(cmd())
	assert.Contains(t, updated.(Model).status, "no active tracking session")
	assert.Contains(t, updated.(Model).View(), "No active alarm")
}

func TestModelQuitUnsubscribes(t *testing.T) {
	t.Parallel()
	fake := &fakeTracking{}
	model := NewModel(context.Background(), fake, "none")

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, fake.unsubscribed)
}
