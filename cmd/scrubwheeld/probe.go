package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"scrubwheel/wheel"
)

// runProbe decodes a single input device with a private engine and prints
// pointer and wheel events as JSON lines. Useful for tuning scale and radius
// on new hardware.
func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	device := fs.String("device", "", "Linux input event device (required)")
	scaleX := fs.Float64("scale-x", 1, "X scale factor")
	scaleY := fs.Float64("scale-y", 1, "Y scale factor")
	swapXY := fs.Bool("swap-xy", false, "Swap X and Y axes")
	radius := fs.Float64("radius", wheel.DefaultRadius, "Wheel ring radius")
	openThreshold := fs.Float64("open-threshold", 0, "Open threshold (0 = radius)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *device == "" {
		return errors.New("probe: -device is required")
	}

	f, err := os.Open(*device)
	if err != nil {
		return fmt.Errorf("open input device: %w", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raw := make(chan deviceEvent, eventQueueSize)
	readErr := make(chan error, 1)
	go readInputEvents(0, f, raw, readErr)

	p, err := newProber(os.Stdout, TouchConfig{ScaleX: *scaleX, ScaleY: *scaleY, SwapXY: *swapXY},
		wheel.Config{Radius: *radius, OpenThreshold: *openThreshold})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case de := <-raw:
			p.feed(de.Event)
		}
	}
}

// prober ties a decoder to an engine and writes everything to w.
type prober struct {
	w       io.Writer
	decoder *touchDecoder
	engine  *wheel.Engine
}

func newProber(w io.Writer, tc TouchConfig, wc wheel.Config) (*prober, error) {
	p := &prober{w: w, decoder: newTouchDecoder(tc)}

	emit := func(ev wheel.OutputEvent) {
		if b, err := wheel.MarshalOutputEvent(ev); err == nil {
			fmt.Fprintf(p.w, "out %s\n", b)
		}
	}
	engine, err := wheel.NewEngine(wc, wheel.ListenerFuncs{
		OnStarted:  func(at wheel.Point) { emit(wheel.Started{At: at}) },
		OnAdvanced: func(arc float64) { emit(wheel.Advanced{ArcLength: arc}) },
		OnOpened:   func() { emit(wheel.Opened{}) },
		OnClosed:   func() { emit(wheel.Closed{}) },
	})
	if err != nil {
		return nil, err
	}
	p.engine = engine
	return p, nil
}

func (p *prober) feed(ev inputEvent) {
	for _, pe := range p.decoder.Feed(ev) {
		if b, err := wheel.MarshalPointerEvent(pe); err == nil {
			fmt.Fprintf(p.w, "in  %s\n", b)
		}
		if err := wheel.Apply(p.engine, pe); err != nil {
			fmt.Fprintf(p.w, "err %v\n", err)
		}
	}
}
