package wheel

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// Events travel as an envelope with a type discriminator:
//
//	{"type":"press","data":{"x":10,"y":20}}
//	{"type":"release"}
//	{"type":"advanced","data":{"arc_length":15.7}}
// ============================================================================

// Wire type names.
const (
	TypePress   = "press"
	TypeMove    = "move"
	TypeRelease = "release"
	TypeCancel  = "cancel"

	TypeStarted  = "started"
	TypeAdvanced = "advanced"
	TypeOpened   = "opened"
	TypeClosed   = "closed"
)

// ErrUnknownEventType is returned by the decoders for envelope types they do
// not handle, so callers can layer their own types on the same envelope.
var ErrUnknownEventType = errors.New("unknown event type")

// Envelope wraps an event with a type discriminator for JSON marshaling.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses the outer envelope only.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("unmarshal envelope: missing type")
	}
	return env, nil
}

// UnmarshalPointerEvent deserializes a JSON envelope into a PointerEvent.
func UnmarshalPointerEvent(data []byte) (PointerEvent, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return env.PointerEvent()
}

// PointerEvent decodes the envelope payload as a pointer event.
func (env Envelope) PointerEvent() (PointerEvent, error) {
	switch env.Type {
	case TypePress:
		p, err := env.point()
		if err != nil {
			return nil, fmt.Errorf("unmarshal Press: %w", err)
		}
		return Press{At: p}, nil

	case TypeMove:
		p, err := env.point()
		if err != nil {
			return nil, fmt.Errorf("unmarshal Move: %w", err)
		}
		return Move{To: p}, nil

	case TypeRelease:
		return Release{}, nil

	case TypeCancel:
		return Cancel{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}

// point decodes a required {"x":..,"y":..} payload.
func (env Envelope) point() (Point, error) {
	if len(env.Data) == 0 {
		return Point{}, errors.New("missing data")
	}
	var raw struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return Point{}, err
	}
	if raw.X == nil || raw.Y == nil {
		return Point{}, errors.New("data must contain x and y")
	}
	return Point{X: *raw.X, Y: *raw.Y}, nil
}

// MarshalPointerEvent serializes a PointerEvent into a JSON envelope.
func MarshalPointerEvent(ev PointerEvent) ([]byte, error) {
	var env Envelope

	switch ev := ev.(type) {
	case Press:
		env.Type = TypePress
		data, err := json.Marshal(ev.At)
		if err != nil {
			return nil, fmt.Errorf("marshal Press: %w", err)
		}
		env.Data = data

	case Move:
		env.Type = TypeMove
		data, err := json.Marshal(ev.To)
		if err != nil {
			return nil, fmt.Errorf("marshal Move: %w", err)
		}
		env.Data = data

	case Release:
		env.Type = TypeRelease

	case Cancel:
		env.Type = TypeCancel

	default:
		return nil, fmt.Errorf("unsupported pointer event: %T", ev)
	}

	return json.Marshal(env)
}

// MarshalOutputEvent serializes an OutputEvent into a JSON envelope.
func MarshalOutputEvent(ev OutputEvent) ([]byte, error) {
	var env Envelope

	switch ev := ev.(type) {
	case Started:
		env.Type = TypeStarted
		data, err := json.Marshal(ev.At)
		if err != nil {
			return nil, fmt.Errorf("marshal Started: %w", err)
		}
		env.Data = data

	case Advanced:
		env.Type = TypeAdvanced
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal Advanced: %w", err)
		}
		env.Data = data

	case Opened:
		env.Type = TypeOpened

	case Closed:
		env.Type = TypeClosed

	default:
		return nil, fmt.Errorf("unsupported output event: %T", ev)
	}

	return json.Marshal(env)
}

// UnmarshalOutputEvent deserializes a JSON envelope into an OutputEvent.
func UnmarshalOutputEvent(data []byte) (OutputEvent, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeStarted:
		p, err := env.point()
		if err != nil {
			return nil, fmt.Errorf("unmarshal Started: %w", err)
		}
		return Started{At: p}, nil

	case TypeAdvanced:
		var a Advanced
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal Advanced: %w", err)
		}
		return a, nil

	case TypeOpened:
		return Opened{}, nil

	case TypeClosed:
		return Closed{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}
