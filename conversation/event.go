package conversation

import "github.com/namikmesic/convostream/internal/sse"

type (
	Payload = sse.Payload
	Usage   = sse.Usage
	Source  = sse.Source
)

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	EventMessage EventKind = iota + 1
	EventComplete
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	}
	return "unknown"
}

// EndReason says why a stream terminated.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndFailed    EndReason = "failed"
	EndAborted   EndReason = "aborted"
)

// Event is the unit delivered to listeners.
//
//   - EventMessage, EventComplete: Payload, Index and RawBytes are set.
//   - EventError: Err is set; Payload, Index and RawBytes too when the server sent an ERROR frame.
//   - EventEnd: Reason is set; Err holds the fault that ended a failed stream.
type Event struct {
	Kind     EventKind
	Index    int
	RawBytes int // wire size of the data: line, newline included
	Payload  *Payload
	Err      error
	Reason   EndReason
}

type Listener func(Event)
