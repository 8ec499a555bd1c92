// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/diag-logger/internal/logic"
)

// Topic is the MQTT topic for logger session events.
const Topic = "vehicle/diag-logger/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "vehicle/diag-logger/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a logger event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

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

// ShouldPublish reports whether ev goes out on Topic. Phase changes are
// high-volume and only feed the local status page.
func ShouldPublish(ev logic.Event) bool {
	return ev.Type != logic.EventPhase
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Logger LoggerPayload `json:"logger"`
}

// LoggerPayload contains the logger event details.
type LoggerPayload struct {
	Timestamp   string          `json:"timestamp"`
	Event       string          `json:"event"`
	Phase       string          `json:"phase"`
	Profile     *ProfilePayload `json:"profile,omitempty"`
	File        string          `json:"file,omitempty"`
	Session     string          `json:"session,omitempty"`
	Result      *ResultPayload  `json:"result,omitempty"`
	WriteErrors int             `json:"write_errors,omitempty"`
	Debug       bool            `json:"debug,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// ProfilePayload identifies the profile a session ran with.
type ProfilePayload struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// ResultPayload is a session outcome.
type ResultPayload struct {
	Kind string `json:"kind"`
	Code int    `json:"code,omitempty"`
}

// FormatPayload creates the JSON payload for a logger event.
func FormatPayload(event logic.Event) ([]byte, error) {
	lp := LoggerPayload{
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		Event:       string(event.Type),
		Phase:       string(event.Phase),
		File:        event.FileName,
		Session:     event.SessionID,
		WriteErrors: event.WriteErrors,
		Debug:       event.Debug,
		Reason:      event.Reason,
	}
	if event.ProfileIndex > 0 {
		lp.Profile = &ProfilePayload{Index: event.ProfileIndex, Name: event.ProfileName}
	}
	if event.Type == logic.EventSessionEnd {
		lp.Result = &ResultPayload{Kind: string(event.Result.Kind), Code: event.Result.Code}
	}
	return json.Marshal(Payload{Logger: lp})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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

// willPayload is registered as the broker-side last will.
func willPayload(now time.Time) []byte {
	data, _ := FormatSystemPayload(SystemEvent{
		Timestamp: now,
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	return data
}
