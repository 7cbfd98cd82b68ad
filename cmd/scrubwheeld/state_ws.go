package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scrubwheel/wheel"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
//   - Hub tracks connected clients; each has its own write pump so one slow
//     client doesn't block others. Clients whose send buffer fills are
//     disconnected.
//   - The initial state_init snapshot is requested through the daemon loop;
//     DaemonState is never shared.
//   - RunBroadcaster turns reducer broadcasts into JSON frames
//     {type, ts, data} and fans them out.
//
// Event payloads are a superset of the wheel wire format, so clients can
// decode them with wheel.UnmarshalOutputEvent.
//
// ============================================================================

const (
	wsTypeStateInit     = "state_init"
	wsTypeProgressReset = "progress_reset"
)

// wsSnapshotData is the JSON `data` payload for "state_init".
type wsSnapshotData struct {
	State     string `json:"state"`
	GestureID string `json:"gesture_id,omitempty"`

	Center       *wheel.Point `json:"center,omitempty"`
	Absolute     *wheel.Point `json:"absolute,omitempty"`
	Circularized *wheel.Point `json:"circularized,omitempty"`

	GestureArc float64 `json:"gesture_arc"`
	Progress   float64 `json:"progress"`
	Rate       float64 `json:"rate"`

	Radius        float64 `json:"radius"`
	OpenThreshold float64 `json:"open_threshold"`
}

type wsStartedData struct {
	GestureID string  `json:"gesture_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type wsOpenedData struct {
	GestureID    string      `json:"gesture_id"`
	Center       wheel.Point `json:"center"`
	Absolute     wheel.Point `json:"absolute"`
	Circularized wheel.Point `json:"circularized"`
}

type wsAdvancedData struct {
	GestureID  string  `json:"gesture_id"`
	ArcLength  float64 `json:"arc_length"`
	GestureArc float64 `json:"gesture_arc"`
	Progress   float64 `json:"progress"`
	Rate       float64 `json:"rate"`
	Angle      float64 `json:"angle"`

	// Samples is the number of advanced events summed into this frame.
	Samples int `json:"samples"`
}

type wsClosedData struct {
	GestureID  string  `json:"gesture_id"`
	GestureArc float64 `json:"gesture_arc"`
	Canceled   bool    `json:"canceled"`
}

type wsProgressResetData struct {
	Previous float64 `json:"previous"`
}

// wsOutboundEvent is a pre-typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // zero means "use now"
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalOutbound(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At.UTC()
	if ev.At.IsZero() {
		ts = time.Now().UTC()
	}
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

func snapshotPayload(snap StateSnapshot) wsSnapshotData {
	d := wsSnapshotData{
		State:         snap.State.String(),
		GestureID:     snap.GestureID,
		GestureArc:    snap.GestureArc,
		Progress:      snap.Progress,
		Rate:          snap.Rate,
		Radius:        snap.Radius,
		OpenThreshold: snap.OpenThreshold,
	}
	if snap.Sample != nil {
		s := *snap.Sample
		d.Center, d.Absolute, d.Circularized = &s.Center, &s.Absolute, &s.Circularized
	}
	return d
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = defaultWSSendBuf
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = broadcastQueueSize
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, then remove them after we unlock.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := defaultWSSendBuf
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

// close shuts the connection and the send queue. Closing send signals
// writePump to exit. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes first, then messages from the send queue, to the
// websocket. It exits on write error or when send is closed.
func (c *Client) writePump(first []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if first != nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, first); err != nil {
			c.logExit("writePump", err)
			return
		}
	}

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects and
// handle control frames. It unregisters the client on exit.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP Handler
// ============================================================================

type Server struct {
	logger *slog.Logger

	hub *Hub

	// Required for the initial snapshot request on connect.
	events chan<- Event

	snapshotTimeout time.Duration
}

// NewServer constructs the WS state server. Register it on a mux, then start
// Hub().Run(ctx) and RunBroadcaster.
func NewServer(logger *slog.Logger, events chan<- Event, cfg HubConfig) *Server {
	return &Server{
		logger:          logger,
		hub:             NewHub(logger, cfg),
		events:          events,
		snapshotTimeout: time.Second,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client, then sends state_init.
//
// The client is registered before the snapshot is requested so no broadcast
// is missed; broadcasts queued meanwhile are written after state_init.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// Pumps are not tied to r.Context(): net/http cancels it when the handler
	// returns. The hub and connection errors manage their lifetime.
	go client.readPump()

	snap, err := s.requestSnapshot(r.Context())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", err)
		}
		s.hub.unregister <- client
		return
	}

	initMsg, err := marshalOutbound(wsOutboundEvent{
		Type: wsTypeStateInit,
		Data: snapshotPayload(snap),
		At:   snap.At,
	})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		s.hub.unregister <- client
		return
	}

	go client.writePump(initMsg)
}

// requestSnapshot asks the daemon loop for a snapshot.
func (s *Server) requestSnapshot(ctx context.Context) (StateSnapshot, error) {
	if s.events == nil {
		return StateSnapshot{}, errors.New("no daemon event channel")
	}

	ctx, cancel := context.WithTimeout(ctx, s.snapshotTimeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case s.events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// advanceCoalescer sums bursty advanced events. Advanced arc lengths are
// deltas, so coalescing adds them up; the cumulative fields take the latest
// value.
type advanceCoalescer struct {
	pending *wsAdvancedData
	at      time.Time
}

// add merges d into the pending frame. It returns a frame to flush first if d
// belongs to a different gesture.
func (c *advanceCoalescer) add(d wsAdvancedData, at time.Time) (flush *wsOutboundEvent) {
	if c.pending != nil && c.pending.GestureID != d.GestureID {
		ev := c.take()
		flush = &ev
	}
	if c.pending == nil {
		cp := d
		c.pending = &cp
		c.at = at
		return flush
	}
	c.pending.ArcLength += d.ArcLength
	c.pending.Samples += d.Samples
	c.pending.GestureArc = d.GestureArc
	c.pending.Progress = d.Progress
	c.pending.Rate = d.Rate
	c.pending.Angle = d.Angle
	c.at = at
	return flush
}

func (c *advanceCoalescer) empty() bool { return c.pending == nil }

// take returns the pending frame and clears it. Callers check empty first.
func (c *advanceCoalescer) take() wsOutboundEvent {
	ev := wsOutboundEvent{Type: wheel.TypeAdvanced, Data: *c.pending, At: c.at}
	c.pending = nil
	return ev
}

// RunBroadcaster reads reducer-emitted broadcasts, marshals them and sends
// them to all hub clients. Intended to run as a single goroutine.
//
// With a positive window, advanced events are summed and flushed at most once
// per window (no debounce-on-silence). Any other event flushes the pending
// sum first so ordering is preserved.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, window time.Duration, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var co advanceCoalescer
	var timer *time.Timer
	var timerCh <-chan time.Time

	emit := func(ev wsOutboundEvent) {
		msg, err := marshalOutbound(ev)
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerCh = nil, nil
	}

	flush := func() {
		if !co.empty() {
			emit(co.take())
		}
		stopTimer()
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case <-timerCh:
			timer, timerCh = nil, nil
			if !co.empty() {
				emit(co.take())
			}

		case b, ok := <-src:
			if !ok {
				flush()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if adv, isAdv := ev.Data.(wsAdvancedData); isAdv && window > 0 {
				if prev := co.add(adv, ev.At); prev != nil {
					emit(*prev)
				}
				if timer == nil {
					timer = time.NewTimer(window)
					timerCh = timer.C
				}
				continue
			}

			flush()
			emit(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastStarted:
		return wsOutboundEvent{
			Type: wheel.TypeStarted,
			Data: wsStartedData{GestureID: ev.GestureID, X: ev.Point.X, Y: ev.Point.Y},
			At:   ev.At,
		}, true

	case BroadcastOpened:
		return wsOutboundEvent{
			Type: wheel.TypeOpened,
			Data: wsOpenedData{
				GestureID:    ev.GestureID,
				Center:       ev.Sample.Center,
				Absolute:     ev.Sample.Absolute,
				Circularized: ev.Sample.Circularized,
			},
			At: ev.At,
		}, true

	case BroadcastAdvanced:
		return wsOutboundEvent{
			Type: wheel.TypeAdvanced,
			Data: wsAdvancedData{
				GestureID:  ev.GestureID,
				ArcLength:  ev.ArcLength,
				GestureArc: ev.GestureArc,
				Progress:   ev.Progress,
				Rate:       ev.Rate,
				Angle:      ev.Angle,
				Samples:    1,
			},
			At: ev.At,
		}, true

	case BroadcastClosed:
		return wsOutboundEvent{
			Type: wheel.TypeClosed,
			Data: wsClosedData{GestureID: ev.GestureID, GestureArc: ev.GestureArc, Canceled: ev.Canceled},
			At:   ev.At,
		}, true

	case BroadcastProgressReset:
		return wsOutboundEvent{
			Type: wsTypeProgressReset,
			Data: wsProgressResetData{Previous: ev.Previous},
			At:   ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}
