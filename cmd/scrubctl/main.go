package main

import (
	"fmt"
	"os"
)

// ============================================================================
// scrubctl - Command-line client for scrubwheeld
// ============================================================================
// Injects synthetic pointer input over the daemon's IPC socket and follows
// the published wheel events over its websocket.
//
// Usage:
//   scrubctl press 100 100
//   scrubctl move 250 100
//   scrubctl release
//   scrubctl circle --cx 400 --cy 300 --radius 150 --turns 2
//   scrubctl listen --url ws://127.0.0.1:3002/ws
// ============================================================================

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
