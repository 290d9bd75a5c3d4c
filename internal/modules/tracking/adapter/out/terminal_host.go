package out

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"arrivalwatch/internal/modules/tracking/domain"
	trackingout "arrivalwatch/internal/modules/tracking/port/out"
)

// BellPlayer rings the terminal bell until stopped.
type BellPlayer struct {
	out      io.Writer
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewBellPlayer(out io.Writer, interval time.Duration) *BellPlayer {
	if out == nil {
		out = io.Discard
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &BellPlayer{out: out, interval: interval}
}

var _ trackingout.Player = (*BellPlayer)(nil)

func (p *BellPlayer) Start(_ context.Context, alertType domain.AlertType, soundKey string) error {
	if err := alertType.Validate(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return nil
	}
	stop := make(chan struct{})
	p.stop = stop
	ring := alertType != domain.AlertVibration
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			if ring {
				fmt.Fprint(p.out, "\a")
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (p *BellPlayer) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return nil
}

func (p *BellPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// StaticAppState reports a fixed foreground state and records navigation.
type StaticAppState struct {
	mu         sync.Mutex
	foreground bool
	navigated  []string
}

func NewStaticAppState(foreground bool) *StaticAppState {
	return &StaticAppState{foreground: foreground}
}

var _ trackingout.AppState = (*StaticAppState)(nil)

func (s *StaticAppState) SetForeground(foreground bool) {
	s.mu.Lock()
	s.foreground = foreground
	s.mu.Unlock()
}

func (s *StaticAppState) IsForeground(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreground
}

func (s *StaticAppState) NavigateToArrival(_ context.Context, alarmID string) error {
	s.mu.Lock()
	s.navigated = append(s.navigated, alarmID)
	s.mu.Unlock()
	return nil
}

func (s *StaticAppState) Navigated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigated...)
}
