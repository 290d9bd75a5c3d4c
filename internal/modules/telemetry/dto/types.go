package dto

import "time"

type EventOutput struct {
	ID        int64
	SessionID string
	Type      string
	Payload   map[string]any
	WrittenAt time.Time
}
