// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"encoding/json"
	"time"
)

// EventType names a status change pushed to clients.
type EventType string

const (
	EventSnapshot         EventType = "snapshot"
	EventDetectionToggled EventType = "detection_toggled"
	EventRecordingToggled EventType = "recording_toggled"
	EventAlertStarted     EventType = "alert_started"
	EventAlertStopped     EventType = "alert_stopped"
	EventRecordingOpened  EventType = "recording_opened"
	EventRecordingClosed  EventType = "recording_closed"
	EventStreamStarted    EventType = "stream_started"
	EventStreamEnded      EventType = "stream_ended"
)

// Event is the JSON envelope sent over /ws/status.
type Event struct {
	Type EventType      `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{Type: t, At: time.Now().UTC(), Data: data}
}

// Message is an encoded event queued for delivery.
type Message struct {
	Data []byte
}

// NewJSONMessage encodes v.
func NewJSONMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
