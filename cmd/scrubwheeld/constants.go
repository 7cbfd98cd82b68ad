package main

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03

	SYN_REPORT  = 0
	SYN_DROPPED = 3

	BTN_LEFT  = 0x110
	BTN_TOUCH = 0x14a

	REL_X = 0x00
	REL_Y = 0x01

	ABS_X              = 0x00
	ABS_Y              = 0x01
	ABS_MT_SLOT        = 0x2f
	ABS_MT_POSITION_X  = 0x35
	ABS_MT_POSITION_Y  = 0x36
	ABS_MT_TRACKING_ID = 0x39
)

// Input event value constants for EV_KEY
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Daemon defaults
const (
	defaultIPCSocket  = "/tmp/scrubwheel.sock"
	defaultHTTPListen = "127.0.0.1:3002"
	defaultWSPath     = "/ws"
	healthzPath       = "/healthz"
	inputPath         = "/input"

	defaultRateWindowMS = 250 // Window for scrub rate estimation (ms)
	defaultCoalesceMS   = 0   // Advanced-event coalescing window for websocket clients (ms), 0 = off

	defaultWSSendBuf = 32

	eventQueueSize     = 64
	broadcastQueueSize = 256
)
