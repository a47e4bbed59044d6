package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/homestead/internal/engine"
)

const (
	maxStreamConns = 50
	writeWait      = 5 * time.Second
	pingPeriod     = 30 * time.Second
	readWait       = 60 * time.Second
)

// streamMessage is one websocket frame. The first frame on a connection is
// a "hello" carrying the current tick; every production tick follows as "tick".
type streamMessage struct {
	Type    string              `json:"type"`
	Tick    uint64              `json:"tick"`
	Summary *engine.TickSummary `json:"summary,omitempty"`
}

// handleStream upgrades to a websocket and forwards tick summaries until the
// client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if atomic.AddInt32(&s.streamConns, 1) > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	// Subscribe before the upgrade so no tick published after the handshake is missed.
	id, ticks := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(id)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: only control frames are expected; any error ends the stream.
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeFrame(conn, streamMessage{Type: "hello", Tick: s.Sim.CurrentTick()}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case sum, ok := <-ticks:
			if !ok {
				return
			}
			if err := writeFrame(conn, streamMessage{Type: "tick", Tick: sum.Tick, Summary: &sum}); err != nil {
				slog.Debug("stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
