package wheel

// TouchSample is one observation of the pointer during a gesture.
//
// Samples are values: the engine replaces its sample on every move and never
// modifies one in place.
type TouchSample struct {
	// Center is where the gesture was pressed. It is fixed for the lifetime
	// of the gesture.
	Center Point `json:"center"`

	// Absolute is the raw pointer position.
	Absolute Point `json:"absolute"`

	// Circularized is Absolute projected onto the ring around Center.
	Circularized Point `json:"circularized"`
}

// Angle is the direction of the circularized point around the center.
func (s TouchSample) Angle() float64 {
	return s.Circularized.AngleFrom(s.Center)
}

// Distance is how far the raw pointer is from the center.
func (s TouchSample) Distance() float64 {
	return s.Absolute.DistanceTo(s.Center)
}
