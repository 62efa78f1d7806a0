package process

// EventType classifies events delivered by a Handle.
type EventType string

const (
	EventStdout EventType = "stdout"
	EventStderr EventType = "stderr"
	EventExit   EventType = "exit"
)

// Event is one observation of the child process. Line is set for output
// events; Code, Signal and Err are set for the exit event. For a given
// Handle the exit event is always the last event delivered, after which the
// event channel is closed. Output events preserve per-stream OS delivery
// order; no ordering is guaranteed across the two streams.
type Event struct {
	Type   EventType
	Line   string
	Code   int
	Signal string
	Err    error
}
