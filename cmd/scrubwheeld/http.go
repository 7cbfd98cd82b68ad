package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ============================================================================
// HTTP Server
// ============================================================================
// Hosts the state websocket, a health endpoint and an input endpoint on one
// listener. POST /input takes the same JSON envelopes as the IPC socket.
// ============================================================================

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// newHTTPMux wires the websocket server and /healthz onto a fresh mux.
func newHTTPMux(ws *Server, wsPath string) *http.ServeMux {
	mux := http.NewServeMux()
	ws.Register(mux, wsPath)
	mux.HandleFunc(healthzPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Clients: ws.Hub().ClientCount()})
	})
	mux.HandleFunc(inputPath, handleInput(ws.events, ws.logger))
	return mux
}

// handleInput accepts one event envelope per request and queues it for the
// daemon loop without waiting for it to be reduced.
func handleInput(events chan<- Event, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		reply := func(code int, resp IPCResponse) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(resp)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxIPCLine))
		if err != nil {
			reply(http.StatusBadRequest, IPCResponse{Status: "error", Error: fmt.Sprintf("read body: %v", err)})
			return
		}
		ev, err := UnmarshalEvent(body)
		if err != nil {
			reply(http.StatusBadRequest, IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			return
		}
		if pi, ok := ev.(PointerInput); ok {
			pi.Source = sourceHTTP
			ev = pi
		}

		select {
		case events <- ev:
			logger.Debug("HTTP input queued", "remote_addr", r.RemoteAddr)
			reply(http.StatusOK, IPCResponse{Status: "ok"})
		default:
			logger.Warn("event queue full, dropping HTTP input")
			reply(http.StatusServiceUnavailable, IPCResponse{Status: "error", Error: "event queue full"})
		}
	}
}

// runHTTPServer serves handler on addr and shuts it down gracefully when ctx
// is canceled.
func runHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("HTTP listen on %s: %w", addr, err)
	}
	return serveHTTP(ctx, ln, handler, logger)
}

func serveHTTP(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	logger.Info("HTTP server listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// Serve returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
