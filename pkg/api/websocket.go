package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/insightloop/glean/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 120 * time.Second
	maxMsgSize = 1 << 20
)

// handleWebSocket upgrades the connection and runs the per-user message
// loop: inbound AnalyzeRequests are dispatched to the orchestrator, outbound
// envelopes from the hub are written back in order.
func (s *Server) handleWebSocket(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originChecker(),
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	envelopes, unsubscribe := s.hub.Subscribe(userID)
	defer unsubscribe()

	// Writer: one goroutine owns the connection's write side.
	go func() {
		for env := range envelopes {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				slog.Debug("WebSocket write failed", "user_id", userID, "error", err)
				cancel()
				return
			}
		}
	}()

	conn.SetReadLimit(maxMsgSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket closed unexpectedly", "user_id", userID, "error", err)
			}
			conn.Close()
			return
		}
		s.dispatch(ctx, userID, data)
	}
}

// inboundFrame discriminates the two frame shapes clients send: pings and
// analyze requests.
type inboundFrame struct {
	Type string `json:"type"`
}

func (s *Server) dispatch(ctx context.Context, userID int64, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("Dropping unparseable WebSocket frame", "user_id", userID, "error", err)
		return
	}

	if frame.Type == "ping" {
		s.hub.PublishPong(userID, "pong")
		return
	}

	var req models.AnalyzeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		slog.Warn("Dropping malformed analyze request", "user_id", userID, "error", err)
		return
	}

	// Each message runs in its own task; progress flows back via the hub.
	go s.handler.HandleMessage(ctx, userID, &req)
}

// originChecker allows same-host connections plus the configured origins.
// An explicit "*" entry disables the check.
func (s *Server) originChecker() func(r *http.Request) bool {
	allowed := make(map[string]bool, len(s.cfg.AllowedWSOrigins))
	wildcard := false
	for _, origin := range s.cfg.AllowedWSOrigins {
		if origin == "*" {
			wildcard = true
		}
		allowed[origin] = true
	}

	return func(r *http.Request) bool {
		if wildcard {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}
