package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Routine is a recurring time window with a destination. Days holds
// weekdays (0 = Sunday); empty means every day.
type Routine struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	RadiusM   float64
	Start     string
	End       string
	Days      []int
	Enabled   bool
	SoundKey  string
	AlertType string
}

func (r Routine) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("routine id is required")
	}
	if r.Latitude < -90 || r.Latitude > 90 || r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("routine %s: coordinates out of range", r.ID)
	}
	if r.RadiusM < 0 {
		return fmt.Errorf("routine %s: radius must not be negative", r.ID)
	}
	if _, err := r.Window(); err != nil {
		return fmt.Errorf("routine %s: %w", r.ID, err)
	}
	for _, day := range r.Days {
		if day < 0 || day > 6 {
			return fmt.Errorf("routine %s: weekday %d out of range", r.ID, day)
		}
	}
	return nil
}

// Window is a daily time range in minutes since midnight. End <= Start
// wraps past midnight.
type Window struct {
	Start int
	End   int
}

func (r Routine) Window() (Window, error) {
	start, err := ParseClock(r.Start)
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return Window{}, fmt.Errorf("end: %w", err)
	}
	return Window{Start: start, End: end}, nil
}

func (w Window) Wraps() bool {
	return w.End <= w.Start
}

// ParseClock reads "HH:MM" as minutes since midnight.
func ParseClock(raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h*60 + m, nil
}

func (r Routine) onDay(day time.Weekday) bool {
	if len(r.Days) == 0 {
		return true
	}
	for _, d := range r.Days {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// InWindow reports whether now falls inside the routine window. The part of
// a wrapping window after midnight belongs to the previous day's schedule.
func (r Routine) InWindow(now time.Time) bool {
	w, err := r.Window()
	if err != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	if !w.Wraps() {
		return minute >= w.Start && minute < w.End && r.onDay(now.Weekday())
	}
	if minute >= w.Start {
		return r.onDay(now.Weekday())
	}
	if minute < w.End {
		return r.onDay((now.Weekday() + 6) % 7)
	}
	return false
}

// Matches reports whether the routine is enabled and in its window.
func (r Routine) Matches(now time.Time) bool {
	return r.Enabled && r.InWindow(now)
}
