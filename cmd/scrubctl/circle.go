package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"scrubwheel/wheel"
)

type circleOptions struct {
	CX, CY   float64
	Radius   float64
	Turns    float64
	Steps    int
	Interval time.Duration
}

func (o circleOptions) validate() error {
	if o.Radius <= 0 || math.IsNaN(o.Radius) || math.IsInf(o.Radius, 0) {
		return errors.New("--radius must be a positive number")
	}
	if o.Turns == 0 || math.IsNaN(o.Turns) || math.IsInf(o.Turns, 0) {
		return errors.New("--turns must be non-zero")
	}
	// Consecutive samples must stay well under the daemon's seam threshold.
	if o.Steps < 4 {
		return errors.New("--steps must be >= 4")
	}
	if o.Interval < 0 {
		return errors.New("--interval must be >= 0")
	}
	return nil
}

// circlePath returns a complete gesture: press at the center, move out to the
// ring, walk it for the given number of turns (negative is clockwise in
// screen coordinates with y down), then release.
func circlePath(o circleOptions) []wheel.PointerEvent {
	center := wheel.Pt(o.CX, o.CY)
	n := int(math.Round(math.Abs(o.Turns) * float64(o.Steps)))
	if n < 1 {
		n = 1
	}

	path := make([]wheel.PointerEvent, 0, n+3)
	path = append(path,
		wheel.Press{At: center},
		wheel.Move{To: wheel.Pt(o.CX+o.Radius, o.CY)},
	)
	for i := 1; i <= n; i++ {
		theta := 2 * math.Pi * o.Turns * float64(i) / float64(n)
		path = append(path, wheel.Move{To: wheel.Pt(
			o.CX+o.Radius*math.Cos(theta),
			o.CY+o.Radius*math.Sin(theta),
		)})
	}
	return append(path, wheel.Release{})
}

func newCircleCmd(socketPath *string) *cobra.Command {
	o := circleOptions{
		Radius:   150,
		Turns:    1,
		Steps:    36,
		Interval: 10 * time.Millisecond,
	}

	cmd := &cobra.Command{
		Use:   "circle",
		Short: "Draw a full scrub gesture around a center point",
		Long: `Presses at the center, moves out to the ring and walks around it.
The radius should reach the daemon's open threshold so the wheel opens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}

			c, err := dialIPC(*socketPath)
			if err != nil {
				return err
			}
			defer c.Close()

			path := circlePath(o)
			for i, ev := range path {
				if err := c.Send(ev); err != nil {
					// Do not leave the daemon mid-gesture.
					if _, isPress := ev.(wheel.Press); !isPress {
						_ = c.Send(wheel.Cancel{})
					}
					return fmt.Errorf("event %d: %w", i, err)
				}
				if o.Interval > 0 && i < len(path)-1 {
					time.Sleep(o.Interval)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok (%d events)\n", len(path))
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&o.CX, "cx", o.CX, "Center X")
	f.Float64Var(&o.CY, "cy", o.CY, "Center Y")
	f.Float64Var(&o.Radius, "radius", o.Radius, "Distance from the center to walk at")
	f.Float64Var(&o.Turns, "turns", o.Turns, "Number of turns (negative reverses direction)")
	f.IntVar(&o.Steps, "steps", o.Steps, "Moves per turn")
	f.DurationVar(&o.Interval, "interval", o.Interval, "Delay between events")

	return cmd
}
