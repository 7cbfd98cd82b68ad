package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scrubwheel/wheel"
)

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (pointer input, progress reset, snapshot requests)
//   - Commands: side effects requested by the reducer
//   - Broadcasts: state changes published to websocket clients
//   - Reduce(): computes next state, commands and broadcasts without performing I/O
//
// The engine is part of DaemonState and is mutated only here. Its output
// events are recorded and translated into broadcasts in the same call.

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdPublishStateSnapshot delivers a snapshot to whoever asked for it.
// The channel send happens in the effects layer so Reduce stays free of I/O.
type CmdPublishStateSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan<- StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (c CmdPublishStateSnapshot) String() string {
	return fmt.Sprintf("CmdPublishStateSnapshot(state=%s)", c.Snapshot.State)
}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a state change to publish to websocket clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastStarted is emitted when a press opens a gesture.
type BroadcastStarted struct {
	GestureID string
	Point     wheel.Point
	At        time.Time
}

// BroadcastOpened is emitted when the pointer first reaches the open threshold.
type BroadcastOpened struct {
	GestureID string
	Sample    wheel.TouchSample
	At        time.Time
}

// BroadcastAdvanced is emitted for every advanced event while scrubbing.
type BroadcastAdvanced struct {
	GestureID  string
	ArcLength  float64
	GestureArc float64
	Progress   float64
	Rate       float64
	Angle      float64
	At         time.Time
}

// BroadcastClosed is emitted when a gesture ends.
type BroadcastClosed struct {
	GestureID  string
	GestureArc float64
	Canceled   bool
	At         time.Time
}

// BroadcastProgressReset is emitted when progress is zeroed.
type BroadcastProgressReset struct {
	Previous float64
	At       time.Time
}

func (BroadcastStarted) broadcastMarker()       {}
func (BroadcastOpened) broadcastMarker()        {}
func (BroadcastAdvanced) broadcastMarker()      {}
func (BroadcastClosed) broadcastMarker()        {}
func (BroadcastProgressReset) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReducerConfig carries the reducer's tunables and injectable dependencies.
type ReducerConfig struct {
	// RateWindow is the trailing window for scrub rate estimation.
	RateWindow time.Duration

	// NewGestureID returns a fresh gesture identifier. Defaults to a random UUID.
	NewGestureID func() string
}

func (c ReducerConfig) newGestureID() string {
	if c.NewGestureID != nil {
		return c.NewGestureID()
	}
	return uuid.NewString()
}

// ReduceResult is the output of Reduce(): next state plus commands to execute
// and broadcasts to publish, in order.
//
// Err is set when the event was rejected (for example a press while a gesture
// is in progress). State is unchanged in that case.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
	Err        error
}

var errNoEngine = errors.New("daemon state has no engine")

// Reduce applies one event to the daemon state.
//
// Rules:
//   - Must not perform I/O
//   - Must not block
//   - Must not read the clock; timestamps come from TimedEvent
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}

	if s == nil || s.Engine == nil {
		return ReduceResult{State: s, Err: errNoEngine}
	}

	rr := ReduceResult{State: s}

	switch ev := e.(type) {
	case PointerInput:
		reducePointer(s, ev, at, cfg, &rr)

	case ResetProgress:
		prev := s.Progress
		s.Progress = 0
		rr.Broadcasts = append(rr.Broadcasts, BroadcastProgressReset{Previous: prev, At: at})

	case RequestStateSnapshot:
		rr.Commands = append(rr.Commands, CmdPublishStateSnapshot{
			Snapshot: s.Snapshot(at),
			Reply:    ev.Reply,
		})

	default:
		// Unknown event type: no-op.
	}

	return rr
}

func reducePointer(s *DaemonState, ev PointerInput, at time.Time, cfg ReducerConfig, rr *ReduceResult) {
	if ev.Event == nil {
		return
	}

	// Anything left over belongs to an engine driven outside Reduce; drop it.
	s.recorder.Drain()

	if err := wheel.Apply(s.Engine, ev.Event); err != nil {
		rr.Err = err
	}
	_, canceled := ev.Event.(wheel.Cancel)

	for _, out := range s.recorder.Drain() {
		switch o := out.(type) {
		case wheel.Started:
			s.Gesture = GestureState{
				ID:        cfg.newGestureID(),
				StartedAt: at,
				Center:    o.At,
			}
			s.Rate.Reset()
			rr.Broadcasts = append(rr.Broadcasts, BroadcastStarted{
				GestureID: s.Gesture.ID,
				Point:     o.At,
				At:        at,
			})

		case wheel.Opened:
			s.Gesture.Opened = true
			sample, _ := s.Engine.Current()
			rr.Broadcasts = append(rr.Broadcasts, BroadcastOpened{
				GestureID: s.Gesture.ID,
				Sample:    sample,
				At:        at,
			})

		case wheel.Advanced:
			s.Progress += o.ArcLength
			s.Gesture.ArcLength += o.ArcLength
			rate := s.Rate.Add(o.ArcLength, at, cfg.RateWindow)

			var angle float64
			if sample, ok := s.Engine.Current(); ok {
				angle = sample.Angle()
			}
			rr.Broadcasts = append(rr.Broadcasts, BroadcastAdvanced{
				GestureID:  s.Gesture.ID,
				ArcLength:  o.ArcLength,
				GestureArc: s.Gesture.ArcLength,
				Progress:   s.Progress,
				Rate:       rate,
				Angle:      angle,
				At:         at,
			})

		case wheel.Closed:
			rr.Broadcasts = append(rr.Broadcasts, BroadcastClosed{
				GestureID:  s.Gesture.ID,
				GestureArc: s.Gesture.ArcLength,
				Canceled:   canceled,
				At:         at,
			})
			s.Gesture = GestureState{}
			s.Rate.Reset()
		}
	}
}
