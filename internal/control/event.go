package control

import (
	"fmt"
	"strings"
)

// Event reports a run-state transition that has already taken effect.
type Event int

const (
	// EventStarted is sent once when the runner loop starts.
	EventStarted Event = iota + 1
	// EventReset is sent after the engine applied a Reset command.
	EventReset
	// EventRunning is sent on every transition into StateRunning.
	EventRunning
	// EventPaused is sent on every transition into StatePaused.
	EventPaused
)

// String returns the event name.
// An unknown tag means reader and writer disagree on the protocol: it panics.
func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventReset:
		return "reset"
	case EventRunning:
		return "running"
	case EventPaused:
		return "paused"
	default:
		panic(fmt.Sprintf("control: unknown event tag %d (protocol desynchronized)", int(e)))
	}
}

// MustValid panics if e is not a known event tag. Every reader calls it on
// the events it pops.
func (e Event) MustValid() Event {
	_ = e.String()
	return e
}

// ParseEvent parses an event name as produced by String.
func ParseEvent(s string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "started":
		return EventStarted, nil
	case "reset":
		return EventReset, nil
	case "running":
		return EventRunning, nil
	case "paused":
		return EventPaused, nil
	}
	return 0, fmt.Errorf("unknown event %q", s)
}

// RunState is the runner's authoritative state. Only the runner changes it.
type RunState int32

const (
	StateUninitialized RunState = iota
	StatePaused
	StateRunning
	StateExited
)

func (s RunState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePaused:
		return "paused"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// ParseRunState parses a state name as produced by String.
func ParseRunState(s string) (RunState, error) {
	for _, st := range []RunState{StateUninitialized, StatePaused, StateRunning, StateExited} {
		if st.String() == strings.ToLower(strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown run state %q", s)
}
