package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scrubwheel/wheel"
)

const (
	version = "0.3.0"

	defaultSocketPath = "/tmp/scrubwheel.sock"
)

// newRootCmd builds the command tree. Each call returns fresh commands so
// tests can execute them independently.
func newRootCmd() *cobra.Command {
	var socketPath string

	root := &cobra.Command{
		Use:   "scrubctl",
		Short: "Control the scrubwheel daemon via IPC",
		Long: `scrubctl sends synthetic pointer events to scrubwheeld over its Unix
socket and can follow the wheel events it publishes.`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&socketPath, "socket", "s", defaultSocketPath, "Unix domain socket path")

	// sendOne dials, sends a single event and prints "ok".
	sendOne := func(cmd *cobra.Command, send func(*ipcClient) error) error {
		c, err := dialIPC(socketPath)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := send(c); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}

	pointCmd := func(use, short string, mk func(wheel.Point) wheel.PointerEvent) *cobra.Command {
		return &cobra.Command{
			Use:   use + " X Y",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := parsePoint(args[0], args[1])
				if err != nil {
					return err
				}
				return sendOne(cmd, func(c *ipcClient) error { return c.Send(mk(p)) })
			},
		}
	}

	simpleCmd := func(use, short string, send func(*ipcClient) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendOne(cmd, send)
			},
		}
	}

	root.AddCommand(
		pointCmd("press", "Put the pointer down at X Y", func(p wheel.Point) wheel.PointerEvent { return wheel.Press{At: p} }),
		pointCmd("move", "Move the pointer to X Y", func(p wheel.Point) wheel.PointerEvent { return wheel.Move{To: p} }),
		simpleCmd("release", "Lift the pointer", func(c *ipcClient) error { return c.Send(wheel.Release{}) }),
		simpleCmd("cancel", "Cancel the gesture in progress", func(c *ipcClient) error { return c.Send(wheel.Cancel{}) }),
		simpleCmd("reset", "Reset accumulated scrub progress", func(c *ipcClient) error { return c.ResetProgress() }),
		newCircleCmd(&socketPath),
		newListenCmd(),
	)

	return root
}

func parsePoint(xs, ys string) (wheel.Point, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return wheel.Point{}, fmt.Errorf("invalid x %q: %w", xs, err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return wheel.Point{}, fmt.Errorf("invalid y %q: %w", ys, err)
	}
	return wheel.Pt(x, y), nil
}
