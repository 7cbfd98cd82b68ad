package main

import (
	"encoding/json"
	"fmt"
	"net"

	"scrubwheel/wheel"
)

// resetProgressType is the daemon-level envelope type for progress resets
// (duplicated from scrubwheeld for a standalone binary).
const resetProgressType = "reset_progress"

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ipcClient is one connection to the daemon. Requests are line-delimited
// JSON and each gets exactly one response, so a connection can be reused for
// a stream of events.
type ipcClient struct {
	conn net.Conn
	dec  *json.Decoder
}

func dialIPC(socketPath string) (*ipcClient, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	return &ipcClient{conn: conn, dec: json.NewDecoder(conn)}, nil
}

func (c *ipcClient) Close() error {
	return c.conn.Close()
}

// Send delivers one pointer event.
func (c *ipcClient) Send(ev wheel.PointerEvent) error {
	data, err := wheel.MarshalPointerEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.roundTrip(data)
}

// ResetProgress asks the daemon to zero its accumulated progress.
func (c *ipcClient) ResetProgress() error {
	data, err := json.Marshal(wheel.Envelope{Type: resetProgressType})
	if err != nil {
		return err
	}
	return c.roundTrip(data)
}

func (c *ipcClient) roundTrip(data []byte) error {
	if _, err := fmt.Fprintf(c.conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}
