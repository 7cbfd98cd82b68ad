package main

import (
	"fmt"
	"os"

	"github.com/sevlyar/go-daemon"
)

// detach re-executes scrubwheeld in the background with the same arguments.
//
// In the parent it returns the child process, and the caller should exit.
// In the child it returns a nil process and a release func that removes the
// PID file; call it before exiting.
func detach(pc ProcessConfig) (*os.Process, func(), error) {
	// Keep the working directory so relative paths in flags and the config
	// file resolve the same way in the child.
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("get working directory: %w", err)
	}

	dctx := &daemon.Context{
		PidFileName: ExpandPath(pc.PIDFile),
		PidFilePerm: 0o644,
		LogFileName: ExpandPath(pc.LogFile),
		LogFilePerm: 0o640,
		WorkDir:     wd,
		Umask:       0o027,
		Args:        os.Args,
	}

	child, err := dctx.Reborn()
	if err != nil {
		return nil, nil, fmt.Errorf("daemonize: %w", err)
	}
	if child != nil {
		return child, func() {}, nil
	}
	return nil, func() { _ = dctx.Release() }, nil
}
