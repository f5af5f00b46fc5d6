package session

import (
	"fmt"

	"afl-tracker/internal/clock"
	"afl-tracker/internal/domain"
)

type EventKind uint8

const (
	EventClock EventKind = iota + 1
	EventTick
	EventEligibility
	EventConfirmation
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventClock:
		return "clock"
	case EventTick:
		return "tick"
	case EventEligibility:
		return "eligibility"
	case EventConfirmation:
		return "confirmation"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	for kind := EventClock; kind <= EventError; kind++ {
		if kind.String() == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", b)
}

// Confirmation reports a committed action.
type Confirmation struct {
	ActionID   string            `json:"actionId"`
	Action     domain.ActionType `json:"action"`
	PlayerName string            `json:"playerName"`
	Team       string            `json:"team"`
	GameTime   string            `json:"gameTime"`
}

type Event struct {
	Kind         EventKind                   `json:"kind"`
	Clock        *ClockView                  `json:"clock,omitempty"`
	Eligible     map[string]domain.ActionSet `json:"eligible,omitempty"`
	Confirmation *Confirmation               `json:"confirmation,omitempty"`
	Error        string                      `json:"error,omitempty"`
}

// ClockView is the wire form of a clock snapshot.
type ClockView struct {
	State           clock.State `json:"state"`
	ElapsedMs       int64       `json:"elapsedMs"`
	RemainingMs     int64       `json:"remainingMs"`
	ElapsedDisplay  string      `json:"elapsed"`
	DurationDisplay string      `json:"duration"`
}

func NewClockView(s clock.Snapshot) *ClockView {
	return &ClockView{
		State:           s.State,
		ElapsedMs:       s.ElapsedMillis(),
		RemainingMs:     s.Remaining().Milliseconds(),
		ElapsedDisplay:  clock.Format(s.Elapsed),
		DurationDisplay: clock.Format(s.Duration),
	}
}
