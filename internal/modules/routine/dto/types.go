package dto

type RoutineInput struct {
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

type RoutineOutput struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	RadiusM   float64
	Start     string
	End       string
	Days      []int
	Enabled   bool
	InWindow  bool
	Fulfilled bool
	Active    bool
}

// Evaluation actions.
const (
	ActionNone      = "none"
	ActionDebounced = "debounced"
	ActionSuspended = "suspended"
	ActionStarted   = "started"
	ActionStopped   = "stopped"
	ActionSwitched  = "switched"
)

type EvaluationOutput struct {
	Action    string
	RoutineID string
	AlarmID   string
}
