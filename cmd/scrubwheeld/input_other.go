//go:build !linux

package main

import "os"

// startInputReaders spawns one blocking reader goroutine per device.
func startInputReaders(files []*os.File, events chan<- deviceEvent, readErr chan<- error) {
	for i, f := range files {
		go readInputEvents(i, f, events, readErr)
	}
}
