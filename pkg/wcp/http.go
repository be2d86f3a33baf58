// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Solifugus/storysplicer/pkg/tools"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Remote access control is the session token policy, not the Origin
	// header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Router builds the remote transport: the websocket endpoint plus
// health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWebsocket)
	return r
}

// ListenAndServe serves the remote transport until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Websocket transport listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleWebsocket runs one MCP conversation per connection. Each text
// frame is one JSON-RPC message; responses are written back in order.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	slog.Info("Websocket client connected", "remote", r.RemoteAddr)

	// Character mutations over this transport must present a session
	// token.
	ctx := tools.WithRemote(r.Context())

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Websocket read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		response := s.mcp.HandleMessage(ctx, json.RawMessage(message))
		if response == nil {
			// Notification, nothing to send back.
			continue
		}
		payload, err := json.Marshal(response)
		if err != nil {
			slog.Error("Failed to encode response", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Warn("Websocket write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}
