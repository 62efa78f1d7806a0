package history

import (
	"context"
	"time"
)

// EventType defines the kind of session lifecycle event.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventSessionExit  EventType = "session_exit"
)

// Event records one lifecycle transition of the supervised server process.
type Event struct {
	Type        EventType `json:"type"`
	OccurredAt  time.Time `json:"occurred_at"`
	Name        string    `json:"name"`
	PID         int       `json:"pid"`
	Mode        string    `json:"mode"`
	ExitCode    int       `json:"exit_code"`
	Signal      string    `json:"signal,omitempty"`
	Intentional bool      `json:"intentional"`
}

// Sink is a destination for session history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
