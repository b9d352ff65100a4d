package pump

// EventType identifies the hardware (or scheduler) source of an event.
type EventType int

const (
	// EventSwitch reports the mode switch position; Auto carries the level.
	EventSwitch EventType = iota
	// EventKnob reports a raw rotary delta; the controller owns clamping.
	EventKnob
	// EventButton reports one encoder button press.
	EventButton
	// EventAutoStart requests a scheduled auto run. Honored only in
	// AutoStandby/Menu.
	EventAutoStart
)

func (t EventType) String() string {
	switch t {
	case EventSwitch:
		return "switch"
	case EventKnob:
		return "knob"
	case EventButton:
		return "button"
	case EventAutoStart:
		return "auto-start"
	default:
		return "unknown"
	}
}

// Event is the small message handlers enqueue for the run loop. All state
// mutation happens on the run loop; handlers never touch state directly.
type Event struct {
	Type  EventType
	Auto  bool
	Delta int
}
