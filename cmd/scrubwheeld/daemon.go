package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scrubwheel/wheel"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The daemon loop is the only goroutine that touches DaemonState, and so the
// only one that drives the wheel engine. Touch input, IPC and websocket
// clients all feed it through a single Event channel, which serializes engine
// access.
//
//   events -> Reduce -> (state, commands, broadcasts)
//                         commands   -> runEffect
//                         broadcasts -> websocket broadcaster
//
// ============================================================================

// runDaemon reduces events until ctx is canceled or events is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	cfg ReducerConfig,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	handle := func(ev Event) bool {
		rr := Reduce(state, TimedEvent{Event: ev, At: time.Now()}, cfg)
		if rr.State != nil {
			state = rr.State
		}

		if rr.Err != nil {
			if errors.Is(rr.Err, wheel.ErrInvalidTransition) {
				logger.Debug("pointer event rejected", "error", rr.Err)
			} else {
				logger.Warn("event rejected", "error", rr.Err)
			}
		}

		for _, cmd := range rr.Commands {
			runEffect(cmd, logger)
		}

		for _, b := range rr.Broadcasts {
			if broadcasts == nil {
				break
			}
			select {
			case broadcasts <- b:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			if !handle(ev) {
				logger.Info("daemon stopping (context canceled)")
				return
			}
		}
	}
}

// runTouchInput decodes raw device events and forwards the resulting pointer
// events to the daemon loop. A device error cancels any gesture in progress
// and is returned.
func runTouchInput(
	ctx context.Context,
	raw <-chan deviceEvent,
	readErr <-chan error,
	decoders []*touchDecoder,
	events chan<- Event,
	logger *slog.Logger,
) error {
	send := func(pe wheel.PointerEvent) bool {
		select {
		case events <- PointerInput{Event: pe, Source: "touch"}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			logger.Error("input device error", "error", err)
			send(wheel.Cancel{})
			return err

		case de := <-raw:
			if de.Device < 0 || de.Device >= len(decoders) {
				continue
			}
			for _, pe := range decoders[de.Device].Feed(de.Event) {
				logger.Debug("touch input", "device", de.Device, "event", pe)
				if !send(pe) {
					return nil
				}
			}
		}
	}
}
