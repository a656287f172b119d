package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/lensmap/internal/baker"
	"github.com/MeKo-Tech/lensmap/internal/dispmap"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketBakeStatus is the JSON progress/status frame streamed while a
// bake runs; the finished map follows as one binary frame in the raw .f32
// container.
type WebSocketBakeStatus struct {
	Type     string  `json:"type"`   // "progress", "completed", "error"
	Status   string  `json:"status"` // "baking", "done", "failed"
	Progress float64 `json:"progress,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// bakeWebSocketHandler upgrades the connection and serves bake requests with
// streamed progress, which HTTP POST cannot offer for long-running bakes.
func (s *Server) bakeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleBakeMessage(conn, data)
		}
	}
}

func (s *Server) handleBakeMessage(conn *websocket.Conn, data []byte) {
	var req BakeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendBakeError(conn, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	opts, err := req.options()
	if err != nil {
		s.sendBakeError(conn, err.Error())
		return
	}

	// Report roughly every two percent; every row would flood the socket.
	// The mutex serializes frames, since progress fires from bake workers.
	var writeMu sync.Mutex
	reportEvery := max(opts.Height/50, 1)
	opts.Progress = func(done, total int) {
		if done%reportEvery != 0 && done != total {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		s.sendBakeStatus(conn, WebSocketBakeStatus{
			Type:     "progress",
			Status:   "baking",
			Progress: float64(done) / float64(total),
		})
	}

	ctx := context.Background()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	m, err := baker.Bake(ctx, opts)

	writeMu.Lock()
	defer writeMu.Unlock()
	if err != nil {
		bakeRequestsTotal.WithLabelValues("error").Inc()
		s.sendBakeError(conn, fmt.Sprintf("Bake failed: %v", err))
		return
	}
	bakeRequestsTotal.WithLabelValues("ok").Inc()
	bakeDuration.Observe(time.Since(start).Seconds())
	bakeTexelsTotal.Add(float64(m.Width * m.Height))

	var buf bytes.Buffer
	if err := dispmap.Encode(&buf, m); err != nil {
		s.sendBakeError(conn, fmt.Sprintf("Encoding failed: %v", err))
		return
	}

	s.sendBakeStatus(conn, WebSocketBakeStatus{Type: "completed", Status: "done", Progress: 1})
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		slog.Error("Failed to send baked map", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendBakeStatus(conn *websocket.Conn, status WebSocketBakeStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		slog.Error("Failed to marshal status frame", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send status frame", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendBakeError(conn *websocket.Conn, message string) {
	s.sendBakeStatus(conn, WebSocketBakeStatus{Type: "error", Status: "failed", Error: message})
}
