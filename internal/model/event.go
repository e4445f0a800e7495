package model

import "time"

// EventType represents the type of a provider webhook event.
type EventType string

// Webhook event type constants as sent by the voice provider.
const (
	EventCallStart    EventType = "call-start"
	EventTranscript   EventType = "transcript"
	EventStatusUpdate EventType = "status-update"
	EventCallEnd      EventType = "call-end"
	EventFunctionCall EventType = "function-call"
)

// MapToEventType attempts to map an input string to a known EventType
// constant. It returns the mapped EventType and true if successful, or an
// empty EventType ("") and false if the type is not recognized.
func MapToEventType(input string) (EventType, bool) {
	switch EventType(input) {
	case EventCallStart, EventTranscript, EventStatusUpdate, EventCallEnd, EventFunctionCall:
		return EventType(input), true
	}
	return "", false
}

// EventMetadata carries per-request context attached to an event as it moves
// through the processing pipeline.
type EventMetadata struct {
	EventType  EventType
	RequestID  string
	OwnerID    string
	ReceivedAt time.Time
	RemoteAddr string
}
