package main

import (
	"fmt"
	"time"

	"scrubwheel/wheel"
)

// DaemonState is the top-level, daemon-owned state container.
//
// It is owned by the daemon goroutine. Other goroutines (IPC, websocket) never
// touch it; they ask for a StateSnapshot through the event loop instead.
type DaemonState struct {
	// Engine is the gesture engine. Its listener is recorder, so output
	// events are collected during Reduce and turned into broadcasts there.
	Engine   *wheel.Engine
	recorder *wheel.Recorder

	// Gesture describes the press...release session in progress, if any.
	Gesture GestureState

	// Progress is the running sum of all advanced arc lengths since start or
	// the last ResetProgress.
	Progress float64

	// Rate tracks recent arc lengths for scrub speed estimation.
	Rate RateState
}

// GestureState is the reducer-owned bookkeeping for one gesture.
// ID is empty while the engine is idle.
type GestureState struct {
	ID        string
	StartedAt time.Time
	Center    wheel.Point
	Opened    bool

	// ArcLength is the signed arc length travelled in this gesture.
	ArcLength float64
}

// NewDaemonState builds an idle daemon state around a fresh engine.
func NewDaemonState(cfg wheel.Config) (*DaemonState, error) {
	rec := &wheel.Recorder{}
	engine, err := wheel.NewEngine(cfg, rec)
	if err != nil {
		return nil, fmt.Errorf("create wheel engine: %w", err)
	}
	return &DaemonState{
		Engine:   engine,
		recorder: rec,
	}, nil
}

// StateSnapshot is a coherent copy of daemon state handed to other goroutines.
type StateSnapshot struct {
	State  wheel.State
	Sample *wheel.TouchSample

	GestureID  string
	GestureArc float64
	Progress   float64
	Rate       float64

	Radius        float64
	OpenThreshold float64

	At time.Time
}

// Snapshot copies the daemon state. Intended to be called only by the daemon
// goroutine (single-owner).
func (s *DaemonState) Snapshot(at time.Time) StateSnapshot {
	es := s.Engine.Snapshot()
	cfg := s.Engine.Config()
	threshold := cfg.OpenThreshold
	if threshold == 0 {
		threshold = cfg.Radius
	}
	return StateSnapshot{
		State:         es.State,
		Sample:        es.Sample,
		GestureID:     s.Gesture.ID,
		GestureArc:    s.Gesture.ArcLength,
		Progress:      s.Progress,
		Rate:          s.Rate.Current,
		Radius:        cfg.Radius,
		OpenThreshold: threshold,
		At:            at,
	}
}
