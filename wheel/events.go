package wheel

import "fmt"

// ==============================
// Pointer events (engine input)
// ==============================

// PointerEvent is one phase event from the input source.
type PointerEvent interface {
	pointerMarker()
}

// Press starts a gesture at a point.
type Press struct {
	At Point `json:"at"`
}

// Move reports the pointer at a new position.
type Move struct {
	To Point `json:"to"`
}

// Release ends a gesture normally.
type Release struct{}

// Cancel ends a gesture because the input source lost the pointer.
type Cancel struct{}

func (Press) pointerMarker()   {}
func (Move) pointerMarker()    {}
func (Release) pointerMarker() {}
func (Cancel) pointerMarker()  {}

// Apply feeds ev to e.
func Apply(e *Engine, ev PointerEvent) error {
	switch ev := ev.(type) {
	case Press:
		return e.OnPress(ev.At)
	case Move:
		e.OnMove(ev.To)
	case Release:
		e.OnRelease()
	case Cancel:
		e.OnCancel()
	default:
		return fmt.Errorf("unsupported pointer event: %T", ev)
	}
	return nil
}

// ==============================
// Output events (engine output)
// ==============================

// OutputEvent is one event the engine reports to its listener.
type OutputEvent interface {
	outputMarker()
}

// Started reports that a gesture began at a point.
type Started struct {
	At Point `json:"at"`
}

// Advanced reports signed arc length travelled along the ring since the
// previous sample.
type Advanced struct {
	ArcLength float64 `json:"arc_length"`
}

// Opened reports the Opening to Scrubbing transition.
type Opened struct{}

// Closed reports that a gesture ended by release or cancel.
type Closed struct{}

func (Started) outputMarker()  {}
func (Advanced) outputMarker() {}
func (Opened) outputMarker()   {}
func (Closed) outputMarker()   {}
