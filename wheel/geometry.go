package wheel

import (
	"fmt"
	"math"
)

// seamThreshold is the raw angle difference above which a delta is treated
// as having crossed the -π/π seam rather than as a genuine rotation.
//
// This only classifies correctly when consecutive samples are close together
// in angle: a real rotation of more than 3π/2 between two samples is reported
// as a short rotation in the opposite direction.
const seamThreshold = 3 * math.Pi / 2

// Point is an immutable 2D coordinate in the widget's local space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// AngleFrom returns the direction of p as seen from center, in (-π, π].
func (p Point) AngleFrom(center Point) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Project returns the point on the circle of the given radius around center
// that lies in the direction of p.
//
// When p coincides with center the direction is undefined; atan2(0, 0) is 0,
// so the result is the rightmost point of the circle.
func Project(center, p Point, radius float64) Point {
	angle := p.AngleFrom(center)
	return Point{
		X: center.X + radius*math.Cos(angle),
		Y: center.Y + radius*math.Sin(angle),
	}
}

// AngleDelta returns a - b corrected for wraparound at the -π/π seam.
//
// a and b are expected in (-π, π], as returned by atan2. If the raw
// difference exceeds 3π/2 in magnitude it is assumed to have crossed the
// seam, and 2π is taken off in the direction of its sign.
func AngleDelta(a, b float64) float64 {
	delta := a - b
	if math.Abs(delta) > seamThreshold {
		if delta < 0 {
			delta += 2 * math.Pi
		} else {
			delta -= 2 * math.Pi
		}
	}
	return delta
}
