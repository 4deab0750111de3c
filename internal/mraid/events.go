package mraid

import "fmt"

// Event is a closed enum of protocol event names. Unknown names are ignored
// at registration rather than silently accepted.
type Event string

const (
	EventReady          Event = "ready"
	EventError          Event = "error"
	EventStateChange    Event = "stateChange"
	EventViewableChange Event = "viewableChange"
	EventSizeChange     Event = "sizeChange"
)

var knownEvents = map[Event]bool{
	EventReady:          true,
	EventError:          true,
	EventStateChange:    true,
	EventViewableChange: true,
	EventSizeChange:     true,
}

// ParseEvent validates an event name from the API surface.
func ParseEvent(name string) (Event, error) {
	e := Event(name)
	if !knownEvents[e] {
		return "", fmt.Errorf("unknown event %q", name)
	}
	return e, nil
}

// replayable reports whether late listeners for e receive the current value
// after the ready transition has already happened.
func replayable(e Event) bool {
	switch e {
	case EventReady, EventStateChange, EventViewableChange:
		return true
	}
	return false
}

// Listener is a registered event callback. Listeners are compared by pointer
// identity, which gives removeEventListener reference-equality semantics.
type Listener struct {
	fn func(args ...any)
}

// NewListener wraps a callback function.
func NewListener(fn func(args ...any)) *Listener {
	return &Listener{fn: fn}
}
