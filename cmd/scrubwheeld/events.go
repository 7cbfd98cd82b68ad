package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scrubwheel/wheel"
)

// ============================================================================
// Daemon Events
// ============================================================================
// Events represent input from the touch devices, IPC clients and websocket
// clients. The central daemon loop consumes them and reduces them into state.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps an event with its arrival time. The daemon loop wraps
// every event it receives so the reducer never reads the clock.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// PointerInput carries one pointer phase event into the engine.
// Source is informational ("touch", "ipc").
type PointerInput struct {
	Event  wheel.PointerEvent
	Source string
}

func (PointerInput) eventMarker() {}

// ResetProgress zeroes the accumulated scrub progress.
type ResetProgress struct{}

func (ResetProgress) eventMarker() {}

// RequestStateSnapshot asks the daemon loop for a snapshot of its state.
// The reply is delivered non-blockingly; use a buffered channel.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// The IPC protocol uses the wheel pointer envelope plus daemon-level types:
//
//	{"type":"press","data":{"x":10,"y":20}}
//	{"type":"reset_progress"}
// ============================================================================

const typeResetProgress = "reset_progress"

const (
	sourceIPC  = "ipc"
	sourceHTTP = "http"
)

// UnmarshalEvent deserializes a JSON envelope into a daemon Event.
func UnmarshalEvent(data []byte) (Event, error) {
	env, err := wheel.DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case typeResetProgress:
		return ResetProgress{}, nil
	}

	pe, err := env.PointerEvent()
	if err != nil {
		if errors.Is(err, wheel.ErrUnknownEventType) {
			return nil, fmt.Errorf("unknown event type: %q", env.Type)
		}
		return nil, err
	}
	return PointerInput{Event: pe, Source: sourceIPC}, nil
}

// MarshalEvent serializes a daemon Event into a JSON envelope.
func MarshalEvent(e Event) ([]byte, error) {
	switch e := e.(type) {
	case PointerInput:
		return wheel.MarshalPointerEvent(e.Event)

	case ResetProgress:
		return json.Marshal(wheel.Envelope{Type: typeResetProgress})

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}
}
