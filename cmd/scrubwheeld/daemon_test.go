package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"scrubwheel/wheel"
)

func recvBroadcast(t *testing.T, ch <-chan StateBroadcast) StateBroadcast {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for broadcast")
		return nil
	}
}

func TestRunDaemon_ReducesAndBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := newTestState(t)
	events := make(chan Event, 8)
	broadcasts := make(chan StateBroadcast, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, state, ReducerConfig{NewGestureID: sequentialIDs()}, broadcasts, discardLogger())
	}()

	events <- PointerInput{Event: wheel.Press{At: wheel.Pt(0, 0)}}
	// Rejected: must not stall the loop or broadcast.
	events <- PointerInput{Event: wheel.Press{At: wheel.Pt(1, 1)}}
	events <- PointerInput{Event: wheel.Release{}}

	started, ok := recvBroadcast(t, broadcasts).(BroadcastStarted)
	if !ok || started.GestureID != "g1" {
		t.Fatalf("expected BroadcastStarted for g1, got %+v", started)
	}
	if started.At.IsZero() {
		t.Fatalf("expected the daemon loop to stamp events")
	}
	closed, ok := recvBroadcast(t, broadcasts).(BroadcastClosed)
	if !ok || closed.GestureID != "g1" || closed.Canceled {
		t.Fatalf("expected BroadcastClosed for g1, got %+v", closed)
	}

	reply := make(chan StateSnapshot, 1)
	events <- RequestStateSnapshot{Reply: reply}
	select {
	case snap := <-reply:
		if snap.State != wheel.Idle {
			t.Fatalf("expected idle snapshot, got %v", snap.State)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for snapshot")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runDaemon did not stop on cancel")
	}
}

func TestRunDaemon_StopsWhenEventsClosed(t *testing.T) {
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(context.Background(), events, newTestState(t), ReducerConfig{}, nil, discardLogger())
	}()

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runDaemon did not stop after events closed")
	}
}

func TestRunDaemon_BlockedBroadcastHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan Event, 1)
	broadcasts := make(chan StateBroadcast) // never read

	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, newTestState(t), ReducerConfig{}, broadcasts, discardLogger())
	}()

	events <- ResetProgress{}
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runDaemon stuck on broadcast send after cancel")
	}
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
		return nil
	}
}

func TestRunTouchInput_RoutesPerDevice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	raw := make(chan deviceEvent, 16)
	readErr := make(chan error, 1)
	events := make(chan Event, 16)
	decoders := []*touchDecoder{newTouchDecoder(identity()), newTouchDecoder(identity())}

	result := make(chan error, 1)
	go func() { result <- runTouchInput(ctx, raw, readErr, decoders, events, discardLogger()) }()

	// Device 1 is mid-frame while device 0 commits; frames do not mix.
	raw <- deviceEvent{Device: 1, Event: ev(EV_KEY, BTN_TOUCH, 1)}
	raw <- deviceEvent{Device: 0, Event: ev(EV_KEY, BTN_TOUCH, 1)}
	raw <- deviceEvent{Device: 0, Event: ev(EV_ABS, ABS_X, 7)}
	raw <- deviceEvent{Device: 0, Event: syn()}
	raw <- deviceEvent{Device: 5, Event: syn()} // unknown device, ignored
	raw <- deviceEvent{Device: 1, Event: ev(EV_ABS, ABS_Y, 9)}
	raw <- deviceEvent{Device: 1, Event: syn()}

	want := []PointerInput{
		{Event: wheel.Press{At: wheel.Pt(7, 0)}, Source: "touch"},
		{Event: wheel.Press{At: wheel.Pt(0, 9)}, Source: "touch"},
	}
	for i, w := range want {
		got := recvEvent(t, events)
		if got != Event(w) {
			t.Fatalf("event %d: got %+v, want %+v", i, got, w)
		}
	}

	cancel()
	if err := <-result; err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}
}

func TestRunTouchInput_ReadErrorCancelsGesture(t *testing.T) {
	raw := make(chan deviceEvent)
	readErr := make(chan error, 1)
	events := make(chan Event, 4)

	boom := errors.New("device unplugged")
	readErr <- boom

	err := runTouchInput(context.Background(), raw, readErr, []*touchDecoder{newTouchDecoder(identity())}, events, discardLogger())
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	got := recvEvent(t, events)
	if pi, ok := got.(PointerInput); !ok || pi.Event != wheel.PointerEvent(wheel.Cancel{}) {
		t.Fatalf("expected Cancel pointer input, got %+v", got)
	}
}
