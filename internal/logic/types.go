// Package logic contains the pure decision logic of the logger: button
// debouncing, profile selection, session result taxonomy and the recovery
// policy. This package has NO external dependencies (no GPIO, files, OS, or
// time.Sleep). Time is always injected as a tick count.
package logic

import (
	"fmt"
	"time"
)

// ButtonState is the debounced button reading held in the single-slot mailbox.
type ButtonState int32

const (
	ButtonIdle ButtonState = iota
	ButtonShortPress
	ButtonLongPress
)

func (b ButtonState) String() string {
	switch b {
	case ButtonIdle:
		return "IDLE"
	case ButtonShortPress:
		return "SHORT_PRESS"
	case ButtonLongPress:
		return "LONG_PRESS"
	default:
		return fmt.Sprintf("ButtonState(%d)", int32(b))
	}
}

// Phase is the state of the session control loop.
type Phase string

const (
	PhaseBooting       Phase = "BOOTING"
	PhaseAwaitingStart Phase = "AWAITING_START"
	PhaseLogging       Phase = "LOGGING"
	PhaseRecoveryDelay Phase = "RECOVERY_DELAY"
	PhaseHalted        Phase = "HALTED"
)

// ResultKind classifies how a protocol session ended.
type ResultKind string

const (
	ResultUserTerminated ResultKind = "USER_TERMINATED"
	ResultConnectionLost ResultKind = "CONNECTION_LOST"
	ResultFatalShutdown  ResultKind = "FATAL_SHUTDOWN"
	ResultCannotConnect  ResultKind = "CANNOT_CONNECT"
	ResultCommError      ResultKind = "COMMUNICATION_ERROR"
)

// Numeric result codes as reported by the protocol engine.
const (
	CodeUserTerminated = 0
	CodeConnectionLost = 1
	CodeFatalShutdown  = 2
	CodeCannotConnect  = 11
)

// SessionResult is the outcome of one protocol session.
// Code is only meaningful for ResultCommError.
type SessionResult struct {
	Kind ResultKind
	Code int
}

// ResultFromCode folds an engine result code into the taxonomy.
// Unknown codes become communication errors carrying the code.
func ResultFromCode(code int) SessionResult {
	switch code {
	case CodeUserTerminated:
		return SessionResult{Kind: ResultUserTerminated}
	case CodeConnectionLost:
		return SessionResult{Kind: ResultConnectionLost}
	case CodeFatalShutdown:
		return SessionResult{Kind: ResultFatalShutdown}
	case CodeCannotConnect:
		return SessionResult{Kind: ResultCannotConnect}
	default:
		return SessionResult{Kind: ResultCommError, Code: code}
	}
}

// Trailer returns the line written at the end of the session log.
func (r SessionResult) Trailer() string {
	switch r.Kind {
	case ResultUserTerminated:
		return "\n\nLogging terminated by user"
	case ResultConnectionLost:
		return "\n\nConnection lost"
	case ResultFatalShutdown:
		return "\n\nShutdown requested"
	case ResultCannotConnect:
		return "\n\nCannot connect with ECU"
	default:
		return fmt.Sprintf("\n\nCommunication error, error code = %d", r.Code)
	}
}

func (r SessionResult) String() string {
	if r.Kind == ResultCommError {
		return fmt.Sprintf("%s(%d)", r.Kind, r.Code)
	}
	return string(r.Kind)
}

// EventType identifies a controller event delivered to observers.
type EventType string

const (
	EventPhase        EventType = "PHASE"
	EventBooted       EventType = "BOOTED"
	EventSessionStart EventType = "SESSION_START"
	EventSessionEnd   EventType = "SESSION_END"
	EventFatal        EventType = "FATAL"
)

// Event describes something the control loop did. Fields not relevant to
// the event type are left zero.
type Event struct {
	Timestamp    time.Time
	Type         EventType
	Phase        Phase
	ProfileIndex int
	ProfileName  string
	ProfileCount int
	Profiles     []string
	Selected     int
	FileNumber   uint32
	FileName     string
	SessionID    string
	Result       SessionResult
	WriteErrors  int
	Debug        bool
	CardTotal    uint64
	CardFree     uint64
	Reason       string
}

// Observer receives controller events. Implementations must not block the
// caller for long; the control loop is single threaded.
type Observer interface {
	Observe(Event)
}

// Observers fans an event out to several observers in order.
type Observers []Observer

// Observe delivers the event to every non-nil observer.
func (o Observers) Observe(ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ev)
		}
	}
}
