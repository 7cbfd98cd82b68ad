package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"scrubwheel/wheel"
)

const defaultListenURL = "ws://127.0.0.1:3002/ws"

func newListenCmd() *cobra.Command {
	var (
		wsURL string
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print wheel events published by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return listen(ctx, wsURL, raw, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&wsURL, "url", defaultListenURL, "Daemon websocket URL")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print frames as received")
	return cmd
}

// listen prints frames until ctx is canceled or the daemon closes the
// connection.
func listen(ctx context.Context, wsURL string, raw bool, w io.Writer) error {
	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := d.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	// Closing the connection unblocks ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if raw {
			fmt.Fprintf(w, "%s\n", msg)
			continue
		}
		fmt.Fprintln(w, formatFrame(msg))
	}
}

// formatFrame renders one daemon frame as a single line. Wheel events are
// decoded with the wheel wire format; other frames show their payload.
func formatFrame(msg []byte) string {
	var f struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &f); err != nil || f.Type == "" {
		return "[TEXT] " + string(msg)
	}

	ev, err := wheel.UnmarshalOutputEvent(msg)
	if err != nil {
		if !errors.Is(err, wheel.ErrUnknownEventType) {
			return fmt.Sprintf("%-14s (bad frame: %v)", f.Type, err)
		}
		return strings.TrimSpace(fmt.Sprintf("%-14s %s", f.Type, f.Data))
	}

	switch ev := ev.(type) {
	case wheel.Started:
		return fmt.Sprintf("%-14s at %v", f.Type, ev.At)
	case wheel.Advanced:
		var extra struct {
			Progress float64 `json:"progress"`
			Rate     float64 `json:"rate"`
		}
		_ = json.Unmarshal(f.Data, &extra)
		return fmt.Sprintf("%-14s %+.3f progress=%.3f rate=%.1f", f.Type, ev.ArcLength, extra.Progress, extra.Rate)
	default:
		return f.Type
	}
}
