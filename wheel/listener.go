package wheel

// Listener receives the engine's output events.
//
// Callbacks run synchronously on the goroutine driving the engine and must
// not call back into it.
type Listener interface {
	Started(at Point)
	Advanced(arcLength float64)
	Opened()
	Closed()
}

// ListenerFuncs adapts a set of optional callbacks to Listener.
// Nil fields are skipped.
type ListenerFuncs struct {
	OnStarted  func(at Point)
	OnAdvanced func(arcLength float64)
	OnOpened   func()
	OnClosed   func()
}

func (f ListenerFuncs) Started(at Point) {
	if f.OnStarted != nil {
		f.OnStarted(at)
	}
}

func (f ListenerFuncs) Advanced(arcLength float64) {
	if f.OnAdvanced != nil {
		f.OnAdvanced(arcLength)
	}
}

func (f ListenerFuncs) Opened() {
	if f.OnOpened != nil {
		f.OnOpened()
	}
}

func (f ListenerFuncs) Closed() {
	if f.OnClosed != nil {
		f.OnClosed()
	}
}

// Recorder is a Listener that queues events so the caller can deliver them
// later, in order, by whatever mechanism it likes.
type Recorder struct {
	events []OutputEvent
}

func (r *Recorder) Started(at Point)           { r.events = append(r.events, Started{At: at}) }
func (r *Recorder) Advanced(arcLength float64) { r.events = append(r.events, Advanced{ArcLength: arcLength}) }
func (r *Recorder) Opened()                    { r.events = append(r.events, Opened{}) }
func (r *Recorder) Closed()                    { r.events = append(r.events, Closed{}) }

// Len returns the number of queued events.
func (r *Recorder) Len() int {
	return len(r.events)
}

// Drain returns the queued events and empties the queue.
func (r *Recorder) Drain() []OutputEvent {
	out := r.events
	r.events = nil
	return out
}

// Replay delivers events to l in order.
func Replay(l Listener, events []OutputEvent) {
	for _, ev := range events {
		switch ev := ev.(type) {
		case Started:
			l.Started(ev.At)
		case Advanced:
			l.Advanced(ev.ArcLength)
		case Opened:
			l.Opened()
		case Closed:
			l.Closed()
		}
	}
}
