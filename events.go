package parol6

import (
	"time"

	"parol6/kinematics"
	"parol6/link"
)

// EventKind identifies what an observer is being told.
type EventKind int

const (
	EventJointsUpdated EventKind = iota
	EventRejected
	EventOutOfReach
	EventMoveDone
	EventStalled
	EventSynced
	EventTelemetry
	EventChainFallback
	EventToolChanged
	EventHomed
	EventLinkError
)

var eventNames = map[EventKind]string{
	EventJointsUpdated: "joints_updated",
	EventRejected:      "rejected",
	EventOutOfReach:    "out_of_reach",
	EventMoveDone:      "move_done",
	EventStalled:       "stalled",
	EventSynced:        "synced",
	EventTelemetry:     "telemetry",
	EventChainFallback: "chain_fallback",
	EventToolChanged:   "tool_changed",
	EventHomed:         "homed",
	EventLinkError:     "link_error",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is published to observers. Joints and Pose are snapshots the receiver may keep.
type Event struct {
	Kind      EventKind
	Time      time.Time
	Joints    kinematics.JointVector
	Pose      kinematics.Pose
	Err       error
	Telemetry *link.Telemetry
	Message   string
}

// EventSink receives controller events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// ChanSink delivers events to a buffered channel and drops them when it is full.
type ChanSink struct {
	C chan Event
}

// NewChanSink creates a sink with the given buffer.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

// Publish implements EventSink.
func (s *ChanSink) Publish(e Event) {
	select {
	case s.C <- e:
	default:
	}
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Publish implements EventSink.
func (f SinkFunc) Publish(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Publish(Event) {}
