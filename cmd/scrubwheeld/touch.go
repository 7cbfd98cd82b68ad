package main

import (
	"scrubwheel/wheel"
)

// touchDecoder turns a stream of evdev events from one device into pointer
// events. Only the first contact (MT slot 0, or the single-touch axes) is
// tracked. State is committed on SYN_REPORT:
//   - contact down edge -> Press at the current position
//   - position change while down -> Move
//   - contact up edge -> Release (preceded by a Move if the frame moved)
//
// SYN_DROPPED means the kernel buffer overran and the contact state is
// unknown; an active contact is cancelled and input is ignored until the next
// SYN_REPORT.
type touchDecoder struct {
	cfg TouchConfig

	x, y float64
	slot int32

	down        bool
	pending     bool // contact state seen in the current frame
	havePending bool
	dirty       bool
	dropping    bool
}

func newTouchDecoder(cfg TouchConfig) *touchDecoder {
	return &touchDecoder{cfg: cfg}
}

// Feed consumes one input event and returns the pointer events it completes.
func (d *touchDecoder) Feed(ev inputEvent) []wheel.PointerEvent {
	if d.dropping {
		if ev.Type == EV_SYN && ev.Code == SYN_REPORT {
			d.dropping = false
			d.resetFrame()
		}
		return nil
	}

	switch ev.Type {
	case EV_SYN:
		switch ev.Code {
		case SYN_REPORT:
			return d.commit()
		case SYN_DROPPED:
			d.dropping = true
			d.resetFrame()
			if d.down {
				d.down = false
				return []wheel.PointerEvent{wheel.Cancel{}}
			}
		}

	case EV_KEY:
		switch ev.Code {
		case BTN_TOUCH, BTN_LEFT:
			switch ev.Value {
			case evValuePress:
				d.setContact(true)
			case evValueRelease:
				d.setContact(false)
			}
		}

	case EV_ABS:
		switch ev.Code {
		case ABS_MT_SLOT:
			d.slot = ev.Value
		case ABS_X:
			d.setX(float64(ev.Value))
		case ABS_Y:
			d.setY(float64(ev.Value))
		case ABS_MT_POSITION_X:
			if d.slot == 0 {
				d.setX(float64(ev.Value))
			}
		case ABS_MT_POSITION_Y:
			if d.slot == 0 {
				d.setY(float64(ev.Value))
			}
		case ABS_MT_TRACKING_ID:
			if d.slot == 0 {
				d.setContact(ev.Value >= 0)
			}
		}

	case EV_REL:
		switch ev.Code {
		case REL_X:
			d.setX(d.x + float64(ev.Value))
		case REL_Y:
			d.setY(d.y + float64(ev.Value))
		}
	}

	return nil
}

func (d *touchDecoder) setX(v float64) {
	if v != d.x {
		d.x = v
		d.dirty = true
	}
}

func (d *touchDecoder) setY(v float64) {
	if v != d.y {
		d.y = v
		d.dirty = true
	}
}

func (d *touchDecoder) setContact(down bool) {
	d.pending = down
	d.havePending = true
}

func (d *touchDecoder) resetFrame() {
	d.havePending = false
	d.dirty = false
}

func (d *touchDecoder) commit() []wheel.PointerEvent {
	defer d.resetFrame()

	now := d.down
	if d.havePending {
		now = d.pending
	}

	var out []wheel.PointerEvent
	switch {
	case !d.down && now:
		out = append(out, wheel.Press{At: d.point()})
	case d.down && !now:
		if d.dirty {
			out = append(out, wheel.Move{To: d.point()})
		}
		out = append(out, wheel.Release{})
	case d.down && d.dirty:
		out = append(out, wheel.Move{To: d.point()})
	}
	d.down = now
	return out
}

// point maps the raw device position to wheel coordinates.
func (d *touchDecoder) point() wheel.Point {
	x, y := d.x, d.y
	if d.cfg.SwapXY {
		x, y = y, x
	}
	return wheel.Pt(x*d.cfg.ScaleX, y*d.cfg.ScaleY)
}
