// Package wheel implements the gesture engine behind a circular scrub wheel.
//
// A press opens a gesture at the pointer position, which becomes the wheel's
// center. While the pointer is still close to the center the wheel is
// Opening; once it has travelled OpenThreshold away the wheel opens and every
// further move is reported as the signed arc length travelled along a ring of
// Radius around the center. Release or cancel closes the wheel.
//
// The engine is synchronous and not safe for concurrent use. It is meant to
// be owned by a single goroutine that feeds it pointer events one at a time.
package wheel

import (
	"errors"
	"fmt"
	"math"
)

// DefaultRadius is the ring radius used when none is configured.
const DefaultRadius = 100.0

// ErrInvalidTransition is returned when an operation is not permitted in the
// engine's current state. The engine state is left unchanged.
var ErrInvalidTransition = errors.New("invalid transition")

// Config holds the engine geometry.
type Config struct {
	// Radius of the ring in widget units. Must be > 0.
	Radius float64 `json:"radius" yaml:"radius"`

	// OpenThreshold is the distance from the center the pointer must reach
	// before the wheel opens. Zero means "same as Radius".
	OpenThreshold float64 `json:"open_threshold,omitempty" yaml:"open_threshold,omitempty"`
}

// DefaultConfig returns a Config with the default radius and an open
// threshold equal to the radius.
func DefaultConfig() Config {
	return Config{Radius: DefaultRadius}
}

// Validate reports whether the config can drive an engine.
func (c Config) Validate() error {
	if math.IsNaN(c.Radius) || math.IsInf(c.Radius, 0) || c.Radius <= 0 {
		return fmt.Errorf("radius must be a positive finite number, got %v", c.Radius)
	}
	if math.IsNaN(c.OpenThreshold) || math.IsInf(c.OpenThreshold, 0) || c.OpenThreshold < 0 {
		return fmt.Errorf("open threshold must be a finite number >= 0, got %v", c.OpenThreshold)
	}
	return nil
}

// threshold returns the effective open threshold.
func (c Config) threshold() float64 {
	if c.OpenThreshold == 0 {
		return c.Radius
	}
	return c.OpenThreshold
}

// Engine interprets a stream of pointer events as scrub wheel gestures.
type Engine struct {
	cfg      Config
	listener Listener

	state   State
	current *TouchSample
}

// NewEngine returns an idle engine. l may be nil.
func NewEngine(cfg Config, l Listener) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, listener: l}, nil
}

// SetListener replaces the listener. The engine does not own it; passing nil
// detaches the current one.
func (e *Engine) SetListener(l Listener) {
	e.listener = l
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) State() State { return e.state }

// Current returns the latest sample, or false while idle.
func (e *Engine) Current() (TouchSample, bool) {
	if e.current == nil {
		return TouchSample{}, false
	}
	return *e.current, true
}

// Snapshot is a copy of the engine's state at one instant.
type Snapshot struct {
	State  State        `json:"state"`
	Sample *TouchSample `json:"sample,omitempty"`
}

func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{State: e.state}
	if e.current != nil {
		s := *e.current
		snap.Sample = &s
	}
	return snap
}

// OnPress starts a gesture centered at p.
//
// It returns ErrInvalidTransition if a gesture is already in progress; the
// running gesture is not disturbed and the listener is not called.
func (e *Engine) OnPress(p Point) error {
	if e.state != Idle {
		return fmt.Errorf("press at %v while %v: %w", p, e.state, ErrInvalidTransition)
	}

	e.state = Opening
	e.current = &TouchSample{Center: p, Absolute: p, Circularized: p}
	if e.listener != nil {
		e.listener.Started(p)
	}
	return nil
}

// OnMove reports the pointer at p. Moves while idle are ignored, since
// pointer events may trail a release slightly.
func (e *Engine) OnMove(p Point) {
	if e.state == Idle || e.current == nil {
		return
	}

	last := *e.current
	next := TouchSample{
		Center:       last.Center,
		Absolute:     p,
		Circularized: Project(last.Center, p, e.cfg.Radius),
	}
	// Replace before notifying so a listener that inspects the engine sees
	// the sample the event refers to.
	e.current = &next

	switch e.state {
	case Opening:
		if next.Distance() >= e.cfg.threshold() {
			e.state = Scrubbing
			if e.listener != nil {
				e.listener.Opened()
			}
		}
	case Scrubbing:
		delta := AngleDelta(next.Angle(), last.Angle())
		if e.listener != nil {
			e.listener.Advanced(e.cfg.Radius * delta)
		}
	}
}

// OnRelease ends the gesture. It is a no-op while idle.
func (e *Engine) OnRelease() {
	e.close()
}

// OnCancel ends the gesture after the input source lost the pointer.
// It is a no-op while idle.
func (e *Engine) OnCancel() {
	e.close()
}

func (e *Engine) close() {
	if e.state == Idle {
		return
	}
	e.state = Idle
	e.current = nil
	if e.listener != nil {
		e.listener.Closed()
	}
}
