// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for motion events.
const Topic = "vehicle/wheel/converter/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "vehicle/wheel/converter/system"

// EventType identifies a motion event.
type EventType string

const (
	EventMotionStart EventType = "MOTION_START"
	EventMotionStop  EventType = "MOTION_STOP"
)

// Event represents a debounced motion transition to be published.
type Event struct {
	Timestamp    time.Time
	Type         EventType
	RPM          float64
	FrequencyHz  float64
	OutputPeriod time.Duration
	SpeedKMH     float64
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a motion event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Wheel WheelPayload `json:"wheel"`
}

// WheelPayload contains the motion event details.
type WheelPayload struct {
	Timestamp      string  `json:"timestamp"`
	Event          string  `json:"event"`
	RPM            float64 `json:"rpm"`
	FrequencyHz    float64 `json:"frequency_hz"`
	OutputPeriodUs int64   `json:"output_period_us"`
	SpeedKMH       float64 `json:"speed_kmh"`
}

// FormatPayload creates the JSON payload for a motion event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Wheel: WheelPayload{
			Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
			Event:          string(event.Type),
			RPM:            event.RPM,
			FrequencyHz:    event.FrequencyHz,
			OutputPeriodUs: event.OutputPeriod.Microseconds(),
			SpeedKMH:       event.SpeedKMH,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
