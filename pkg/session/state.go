package session

import (
	"fmt"
	"strings"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateCapturing
	StateDispatching
	StateSpeaking
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCapturing:
		return "CAPTURING"
	case StateDispatching:
		return "DISPATCHING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "IDLE":
		*s = StateIdle
	case "CAPTURING":
		*s = StateCapturing
	case "DISPATCHING":
		*s = StateDispatching
	case "SPEAKING":
		*s = StateSpeaking
	default:
		return fmt.Errorf("unknown session state %q", string(b))
	}
	return nil
}

// Trigger is an input to the phase machine.
type Trigger int

const (
	TriggerStart Trigger = iota
	TriggerStop
	TriggerTranscript
	TriggerCaptureError
	TriggerIntent
	TriggerPlaybackEnd
	TriggerPlaybackError
	TriggerTeardown
)

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerStop:
		return "stop"
	case TriggerTranscript:
		return "transcript"
	case TriggerCaptureError:
		return "capture_error"
	case TriggerIntent:
		return "intent"
	case TriggerPlaybackEnd:
		return "playback_end"
	case TriggerPlaybackError:
		return "playback_error"
	case TriggerTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// transitions is the whole phase machine. A trigger missing for a state is
// not accepted in that state.
var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerStart:    StateCapturing,
		TriggerTeardown: StateIdle,
	},
	StateCapturing: {
		TriggerTranscript:   StateDispatching,
		TriggerCaptureError: StateIdle,
		TriggerStop:         StateIdle,
		TriggerTeardown:     StateIdle,
	},
	StateDispatching: {
		TriggerIntent:   StateSpeaking,
		TriggerTeardown: StateIdle,
	},
	StateSpeaking: {
		// Barge-in: user interruption wins over assistant speech.
		TriggerStart:         StateCapturing,
		TriggerStop:          StateIdle,
		TriggerPlaybackEnd:   StateIdle,
		TriggerPlaybackError: StateIdle,
		TriggerTeardown:      StateIdle,
	},
}

// Next returns the state reached from "from" on t, or false when t is not
// accepted in "from".
func Next(from State, t Trigger) (State, bool) {
	to, ok := transitions[from][t]
	return to, ok
}

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Trigger   Trigger
	Timestamp time.Time
	Reason    string
}

// InvalidTransitionError represents a trigger the current state does not accept.
type InvalidTransitionError struct {
	From    State
	Trigger Trigger
}

func (e *InvalidTransitionError) Error() string {
	return "invalid trigger " + e.Trigger.String() + " in state " + e.From.String()
}
