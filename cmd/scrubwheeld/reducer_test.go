package main

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"scrubwheel/wheel"
)

func newTestState(t *testing.T) *DaemonState {
	t.Helper()
	s, err := NewDaemonState(wheel.Config{Radius: 100})
	if err != nil {
		t.Fatalf("NewDaemonState: %v", err)
	}
	return s
}

// sequentialIDs returns a gesture ID generator yielding g1, g2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("g%d", n)
	}
}

func pointer(pe wheel.PointerEvent, at time.Time) Event {
	return TimedEvent{Event: PointerInput{Event: pe, Source: "test"}, At: at}
}

func TestReduce_FullGestureBroadcasts(t *testing.T) {
	cfg := ReducerConfig{RateWindow: 250 * time.Millisecond, NewGestureID: sequentialIDs()}
	t0 := time.Unix(1000, 0).UTC()

	s := newTestState(t)

	rr := Reduce(s, pointer(wheel.Press{At: wheel.Pt(0, 0)}, t0), cfg)
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast on press, got %d", len(rr.Broadcasts))
	}
	started, ok := rr.Broadcasts[0].(BroadcastStarted)
	if !ok {
		t.Fatalf("expected BroadcastStarted, got %T", rr.Broadcasts[0])
	}
	if started.GestureID != "g1" || started.Point != wheel.Pt(0, 0) || !started.At.Equal(t0) {
		t.Fatalf("unexpected started broadcast: %+v", started)
	}
	if rr.State.Gesture.ID != "g1" {
		t.Fatalf("expected gesture id g1 in state, got %q", rr.State.Gesture.ID)
	}

	// Reaching the threshold opens the wheel and does not advance.
	t1 := t0.Add(10 * time.Millisecond)
	rr = Reduce(rr.State, pointer(wheel.Move{To: wheel.Pt(150, 0)}, t1), cfg)
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast on open, got %d", len(rr.Broadcasts))
	}
	opened, ok := rr.Broadcasts[0].(BroadcastOpened)
	if !ok {
		t.Fatalf("expected BroadcastOpened, got %T", rr.Broadcasts[0])
	}
	if opened.Sample.Circularized != wheel.Pt(100, 0) {
		t.Fatalf("expected circularized (100,0), got %v", opened.Sample.Circularized)
	}
	if rr.State.Progress != 0 {
		t.Fatalf("expected no progress while opening, got %v", rr.State.Progress)
	}

	// Quarter turn counter-clockwise.
	t2 := t1.Add(50 * time.Millisecond)
	rr = Reduce(rr.State, pointer(wheel.Move{To: wheel.Pt(0, 150)}, t2), cfg)
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast on advance, got %d", len(rr.Broadcasts))
	}
	adv, ok := rr.Broadcasts[0].(BroadcastAdvanced)
	if !ok {
		t.Fatalf("expected BroadcastAdvanced, got %T", rr.Broadcasts[0])
	}
	want := 100 * math.Pi / 2
	if math.Abs(adv.ArcLength-want) > 1e-9 {
		t.Fatalf("expected arc %v, got %v", want, adv.ArcLength)
	}
	if adv.GestureID != "g1" || math.Abs(adv.Progress-want) > 1e-9 || math.Abs(adv.GestureArc-want) > 1e-9 {
		t.Fatalf("unexpected advanced broadcast: %+v", adv)
	}
	if math.Abs(adv.Angle-math.Pi/2) > 1e-9 {
		t.Fatalf("expected angle π/2, got %v", adv.Angle)
	}
	if adv.Rate <= 0 {
		t.Fatalf("expected positive rate, got %v", adv.Rate)
	}

	// Release closes with the gesture totals, then clears the gesture.
	t3 := t2.Add(10 * time.Millisecond)
	rr = Reduce(rr.State, pointer(wheel.Release{}, t3), cfg)
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast on release, got %d", len(rr.Broadcasts))
	}
	closed, ok := rr.Broadcasts[0].(BroadcastClosed)
	if !ok {
		t.Fatalf("expected BroadcastClosed, got %T", rr.Broadcasts[0])
	}
	if closed.GestureID != "g1" || closed.Canceled || math.Abs(closed.GestureArc-want) > 1e-9 {
		t.Fatalf("unexpected closed broadcast: %+v", closed)
	}
	if rr.State.Gesture.ID != "" {
		t.Fatalf("expected gesture cleared, got %q", rr.State.Gesture.ID)
	}
	if rr.State.Engine.State() != wheel.Idle {
		t.Fatalf("expected engine idle, got %v", rr.State.Engine.State())
	}

	// Progress survives the gesture.
	if math.Abs(rr.State.Progress-want) > 1e-9 {
		t.Fatalf("expected progress %v after release, got %v", want, rr.State.Progress)
	}
}

func TestReduce_ProgressAccumulatesAcrossGestures(t *testing.T) {
	cfg := ReducerConfig{RateWindow: time.Second, NewGestureID: sequentialIDs()}
	t0 := time.Unix(2000, 0)
	s := newTestState(t)

	gesture := func(end wheel.Point) {
		Reduce(s, pointer(wheel.Press{At: wheel.Pt(0, 0)}, t0), cfg)
		Reduce(s, pointer(wheel.Move{To: wheel.Pt(100, 0)}, t0), cfg)
		Reduce(s, pointer(wheel.Move{To: end}, t0), cfg)
		Reduce(s, pointer(wheel.Release{}, t0), cfg)
	}

	gesture(wheel.Pt(0, 100))  // +π/2
	gesture(wheel.Pt(0, -100)) // -π/2
	gesture(wheel.Pt(0, -100)) // -π/2

	want := -100 * math.Pi / 2
	if math.Abs(s.Progress-want) > 1e-9 {
		t.Fatalf("expected progress %v, got %v", want, s.Progress)
	}
}

func TestReduce_NewGestureGetsNewID(t *testing.T) {
	cfg := ReducerConfig{NewGestureID: sequentialIDs()}
	s := newTestState(t)

	Reduce(s, pointer(wheel.Press{At: wheel.Pt(0, 0)}, time.Time{}), cfg)
	Reduce(s, pointer(wheel.Cancel{}, time.Time{}), cfg)
	rr := Reduce(s, pointer(wheel.Press{At: wheel.Pt(0, 0)}, time.Time{}), cfg)

	started := rr.Broadcasts[0].(BroadcastStarted)
	if started.GestureID != "g2" {
		t.Fatalf("expected g2, got %q", started.GestureID)
	}
}

func TestReduce_DefaultGestureIDIsUUID(t *testing.T) {
	s := newTestState(t)
	rr := Reduce(s, pointer(wheel.Press{At: wheel.Pt(0, 0)}, time.Time{}), ReducerConfig{})
	id := rr.Broadcasts[0].(BroadcastStarted).GestureID
	if len(id) != 36 {
		t.Fatalf("expected a UUID, got %q", id)
	}
}

func TestReduce_CancelMarksClosedCanceled(t *testing.T) {
	cfg := ReducerConfig{NewGestureID: sequentialIDs()}
	s := newTestState(t)

	Reduce(s, pointer(wheel.Press{At: wheel.Pt(0, 0)}, time.Time{}), cfg)
	Reduce(s, pointer(wheel.Move{To: wheel.Pt(10, 0)}, time.Time{}), cfg)
	rr := Reduce(s, pointer(wheel.Cancel{}, time.Time{}), cfg)

	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(rr.Broadcasts))
	}
	closed := rr.Broadcasts[0].(BroadcastClosed)
	if !closed.Canceled || closed.GestureID != "g1" || closed.GestureArc != 0 {
		t.Fatalf("unexpected closed broadcast: %+v", closed)
	}
}

func TestReduce_PressWhileActiveRejected(t *testing.T) {
	cfg := ReducerConfig{NewGestureID: sequentialIDs()}
	s := newTestState(t)

	Reduce(s, pointer(wheel.Press{At: wheel.Pt(0, 0)}, time.Time{}), cfg)
	rr := Reduce(s, pointer(wheel.Press{At: wheel.Pt(5, 5)}, time.Time{}), cfg)

	if !errors.Is(rr.Err, wheel.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", rr.Err)
	}
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("expected no broadcasts on rejected press, got %d", len(rr.Broadcasts))
	}
	if s.Gesture.ID != "g1" {
		t.Fatalf("expected gesture g1 to continue, got %q", s.Gesture.ID)
	}
	sample, _ := s.Engine.Current()
	if sample.Center != wheel.Pt(0, 0) {
		t.Fatalf("expected center unchanged, got %v", sample.Center)
	}
}

func TestReduce_IdleEventsAreSilent(t *testing.T) {
	cfg := ReducerConfig{}
	s := newTestState(t)

	for _, pe := range []wheel.PointerEvent{wheel.Move{To: wheel.Pt(1, 1)}, wheel.Release{}, wheel.Cancel{}} {
		rr := Reduce(s, pointer(pe, time.Time{}), cfg)
		if len(rr.Broadcasts) != 0 || rr.Err != nil {
			t.Fatalf("%T while idle: expected nothing, got %d broadcasts, err=%v", pe, len(rr.Broadcasts), rr.Err)
		}
	}
}

func TestReduce_ResetProgress(t *testing.T) {
	cfg := ReducerConfig{}
	s := newTestState(t)
	s.Progress = 12.5

	t0 := time.Unix(3000, 0)
	rr := Reduce(s, TimedEvent{Event: ResetProgress{}, At: t0}, cfg)

	if rr.State.Progress != 0 {
		t.Fatalf("expected progress 0, got %v", rr.State.Progress)
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(rr.Broadcasts))
	}
	bc := rr.Broadcasts[0].(BroadcastProgressReset)
	if bc.Previous != 12.5 || !bc.At.Equal(t0) {
		t.Fatalf("unexpected reset broadcast: %+v", bc)
	}
}

func TestReduce_RequestStateSnapshot(t *testing.T) {
	cfg := ReducerConfig{NewGestureID: sequentialIDs()}
	s := newTestState(t)
	Reduce(s, pointer(wheel.Press{At: wheel.Pt(3, 4)}, time.Time{}), cfg)

	reply := make(chan StateSnapshot, 1)
	rr := Reduce(s, RequestStateSnapshot{Reply: reply}, cfg)

	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rr.Commands))
	}
	cmd, ok := rr.Commands[0].(CmdPublishStateSnapshot)
	if !ok {
		t.Fatalf("expected CmdPublishStateSnapshot, got %T", rr.Commands[0])
	}
	snap := cmd.Snapshot
	if snap.State != wheel.Opening || snap.GestureID != "g1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Sample == nil || snap.Sample.Center != wheel.Pt(3, 4) {
		t.Fatalf("expected sample centered at (3,4), got %+v", snap.Sample)
	}
	if snap.Radius != 100 || snap.OpenThreshold != 100 {
		t.Fatalf("expected radius/threshold 100/100, got %v/%v", snap.Radius, snap.OpenThreshold)
	}

	// The reducer itself never sends.
	select {
	case <-reply:
		t.Fatalf("reducer must not deliver the snapshot itself")
	default:
	}

	runEffect(cmd, discardLogger())
	select {
	case got := <-reply:
		if got.GestureID != "g1" {
			t.Fatalf("unexpected delivered snapshot: %+v", got)
		}
	default:
		t.Fatalf("expected snapshot delivered by runEffect")
	}
}

func TestReduce_NilState(t *testing.T) {
	rr := Reduce(nil, ResetProgress{}, ReducerConfig{})
	if rr.Err == nil {
		t.Fatalf("expected error for nil state")
	}
}
