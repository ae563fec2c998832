package domain

import "time"

// EventType defines the category of a store event.
type EventType string

const (
	EventConnect    EventType = "connect"
	EventDisconnect EventType = "disconnect"
	EventError      EventType = "error"
)

// Event is a connectivity or error signal emitted by the store.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	// SessionID is set for errors raised while cleaning up a specific session.
	SessionID string `json:"session_id,omitempty"`
	Err       error  `json:"-"`
}

// EventListener receives store events. Listeners run synchronously on the
// emitting goroutine and must not block.
type EventListener func(Event)
