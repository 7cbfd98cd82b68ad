package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// deviceEvent is an input event tagged with the index of the device it was
// read from. Each device gets its own touch decoder.
type deviceEvent struct {
	Device int
	Event  inputEvent
}

// parseInputEvent decodes one raw little-endian input_event record.
func parseInputEvent(r *bytes.Reader, buf []byte) (inputEvent, error) {
	r.Reset(buf)
	var ev inputEvent
	if err := binary.Read(r, binary.LittleEndian, &ev); err != nil {
		return inputEvent{}, err
	}
	return ev, nil
}

// readInputEvents reads input events from a single device and sends them to a
// channel. It runs in a dedicated goroutine and blocks on read operations.
func readInputEvents(device int, f *os.File, events chan<- deviceEvent, readErr chan<- error) {
	buf := make([]byte, inputEventSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
			return
		}

		ev, err := parseInputEvent(reader, buf)
		if err != nil {
			// Skip malformed events
			continue
		}

		events <- deviceEvent{Device: device, Event: ev}
	}
}

// openInputDevices opens every configured device read-only.
// Already opened files are closed again on failure.
func openInputDevices(paths []string) ([]*os.File, error) {
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, fmt.Errorf("open input device %s: %w", p, err)
		}
		files = append(files, f)
	}
	return files, nil
}
