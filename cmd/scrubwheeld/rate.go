package main

import "time"

// RateState tracks recent advanced events for scrub speed estimation.
// The rate is informational (shown to clients); it never feeds back into the
// engine.
type RateState struct {
	Recent []RateSample

	// Current is the rate computed by the last Add, in arc length per second.
	Current float64
}

// RateSample is one advanced event observed at a given time.
type RateSample struct {
	At        time.Time
	ArcLength float64
}

// Add records an advanced event and returns the signed arc length per second
// over the trailing window, including this event.
func (r *RateState) Add(arcLength float64, at time.Time, window time.Duration) float64 {
	if window <= 0 {
		r.Recent = r.Recent[:0]
		r.Current = 0
		return 0
	}

	cutoff := at.Add(-window)

	// Remove old samples outside the window
	filtered := r.Recent[:0]
	for _, s := range r.Recent {
		if s.At.After(cutoff) {
			filtered = append(filtered, s)
		}
	}
	filtered = append(filtered, RateSample{At: at, ArcLength: arcLength})
	r.Recent = filtered

	sum := 0.0
	for _, s := range filtered {
		sum += s.ArcLength
	}

	r.Current = sum / window.Seconds()
	return r.Current
}

// Reset forgets all samples.
func (r *RateState) Reset() {
	r.Recent = r.Recent[:0]
	r.Current = 0
}
