package domain_test

import (
	"testing"
	"time"

	"arrivalwatch/internal/modules/routine/domain"
)

// 2026-03-02 is a Monday.
func at(day int, hh, mm int) time.Time {
	return time.Date(2026, 3, 1+day, hh, mm, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	cases := map[string]int{"00:00": 0, "07:30": 450, "23:59": 1439, " 9:05 ": 545}
	for raw, want := range cases {
		got, err := domain.ParseClock(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q = %d, want %d", raw, got, want)
		}
	}
	for _, raw := range []string{"", "7", "24:00", "12:60", "ab:cd", "12:5"} {
		if _, err := domain.ParseClock(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestInWindowSameDay(t *testing.T) {
	t.Parallel()
	commute := domain.Routine{ID: "commute", Start: "07:00", End: "09:00", Days: []int{1, 2, 3, 4, 5}, Enabled: true}
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", at(1, 6, 59), false},
		{"start inclusive", at(1, 7, 0), true},
		{"inside", at(3, 8, 15), true},
		{"end exclusive", at(1, 9, 0), false},
		{"weekend", at(0, 8, 0), false},
	}
	for _, tt := range tests {
		if got := commute.InWindow(tt.now); got != tt.want {
			t.Fatalf("%s: InWindow(%s) = %v, want %v", tt.name, tt.now, got, tt.want)
		}
	}
}

func TestInWindowWrapsToPreviousDay(t *testing.T) {
	t.Parallel()
	// Friday night shift, 22:00 to 02:00.
	shift := domain.Routine{ID: "night", Start: "22:00", End: "02:00", Days: []int{5}, Enabled: true}
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"friday evening", at(5, 23, 30), true},
		{"saturday after midnight", at(6, 1, 30), true},
		{"saturday end exclusive", at(6, 2, 0), false},
		{"friday after midnight belongs to thursday", at(5, 1, 0), false},
		{"saturday evening", at(6, 22, 30), false},
	}
	for _, tt := range tests {
		if got := shift.InWindow(tt.now); got != tt.want {
			t.Fatalf("%s: InWindow(%s) = %v, want %v", tt.name, tt.now, got, tt.want)
		}
	}
}

func TestInWindowEmptyDaysMeansEveryDay(t *testing.T) {
	t.Parallel()
	daily := domain.Routine{ID: "daily", Start: "12:00", End: "13:00", Enabled: true}
	for day := 1; day <= 7; day++ {
		if !daily.InWindow(at(day, 12, 30)) {
			t.Fatalf("expected daily routine to match on day %d", day)
		}
	}
	daily.Enabled = false
	if daily.Matches(at(1, 12, 30)) {
		t.Fatalf("disabled routine must not match")
	}
}

func TestRoutineValidate(t *testing.T) {
	t.Parallel()
	valid := domain.Routine{ID: "r", Latitude: 52.5, Longitude: 13.4, RadiusM: 200, Start: "07:00", End: "08:00", Days: []int{0, 6}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	bad := []domain.Routine{
		{Latitude: 1, Longitude: 1, Start: "07:00", End: "08:00"},
		{ID: "r", Latitude: 91, Start: "07:00", End: "08:00"},
		{ID: "r", Start: "7am", End: "08:00"},
		{ID: "r", Start: "07:00", End: "08:00", Days: []int{7}},
	}
	for i, routine := range bad {
		if err := routine.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
