package out

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	trackingout "arrivalwatch/internal/modules/tracking/port/out"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/platform/logging"
)

// LogDispatcher stands in for the host notification center. Presence and
// alerts are logged, and arrival alerts are also written to out.
type LogDispatcher struct {
	logger hclog.Logger
	out    io.Writer

	mu       sync.Mutex
	presence *trackingout.Presence
}

func NewLogDispatcher(logger hclog.Logger, out io.Writer) *LogDispatcher {
	if out == nil {
		out = io.Discard
	}
	return &LogDispatcher{logger: logging.OrNull(logger).Named("notify"), out: out}
}

var _ trackingout.Dispatcher = (*LogDispatcher)(nil)

func (d *LogDispatcher) StartPresence(_ context.Context, presence trackingout.Presence) error {
	d.mu.Lock()
	d.presence = &presence
	d.mu.Unlock()
	d.logger.Info("presence started", "title", presence.Title, "subtitle", presence.Subtitle, "progress", presence.Progress)
	return nil
}

func (d *LogDispatcher) UpdatePresence(_ context.Context, presence trackingout.Presence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.presence == nil {
		return fmt.Errorf("update presence: not started")
	}
	d.presence = &presence
	d.logger.Debug("presence updated", "subtitle", presence.Subtitle, "progress", presence.Progress)
	return nil
}

func (d *LogDispatcher) StopPresence(_ context.Context) error {
	d.mu.Lock()
	d.presence = nil
	d.mu.Unlock()
	d.logger.Info("presence stopped")
	return nil
}

// Presence returns the indicator currently shown, if any.
func (d *LogDispatcher) Presence() (trackingout.Presence, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.presence == nil {
		return trackingout.Presence{}, false
	}
	return *d.presence, true
}

func (d *LogDispatcher) SendArrived(_ context.Context, alert trackingout.ArrivedAlert) error {
	d.logger.Info("arrived alert", "title", alert.Title, "alarm_id", alert.AlarmID, "sound", alert.SoundKey)
	_, err := fmt.Fprintf(d.out, "ARRIVED: %s\n", alert.Title)
	return err
}

func (d *LogDispatcher) SendTrackingStatus(_ context.Context, status trackingout.TrackingStatus) error {
	d.logger.Info("tracking status", "title", status.Title, "distance", geo.FormatDistance(status.DistanceM), "elapsed", status.Elapsed.Round(time.Second))
	return nil
}

func (d *LogDispatcher) ClearCategory(_ context.Context, category string) error {
	d.logger.Debug("alerts cleared", "category", category)
	return nil
}
