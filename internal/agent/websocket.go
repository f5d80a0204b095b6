package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/sonar-hub/internal/identity"
	"github.com/ashureev/sonar-hub/internal/metrics"
)

const wsWriteTimeout = 10 * time.Second

// wsMessage is a client frame on /ws/chat.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsSubscriber forwards session events to one socket.
type wsSubscriber struct {
	id        int64
	userID    string
	sessionID string
	conn      *websocket.Conn
	mu        sync.Mutex
}

func (s *wsSubscriber) key() string   { return sseSessionKey(s.userID, s.sessionID) }
func (s *wsSubscriber) connID() int64 { return s.id }

func (s *wsSubscriber) send(_ int64, ev Event) {
	if err := s.writeJSON(ev); err != nil {
		slog.Debug("WebSocket event write failed", "error", err, "user_id", s.userID)
	}
}

func (s *wsSubscriber) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// HandleWebSocket serves GET /ws/chat. Clients send {"type":"chat","content":...},
// {"type":"clear"}, or {"type":"ping"} and receive the session's events.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("Chat WebSocket request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sessions.RegisterConn(userID, sessionID, ws)
	defer h.sessions.UnregisterConn(userID, sessionID, ws)

	sub := &wsSubscriber{
		id:        h.streams.nextConnID(),
		userID:    userID,
		sessionID: sessionID,
		conn:      ws,
	}
	h.streams.register(sub)
	defer h.streams.unregister(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-h.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	h.readLoop(ctx, ws, sub, chiMiddleware.GetReqID(r.Context()))
	slog.Info("Chat WebSocket ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sub *wsSubscriber, requestID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed", "user_id", sub.userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", sub.userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(sub, "invalid message")
			continue
		}

		switch msg.Type {
		case "chat":
			h.handleSocketChat(ctx, sub, msg.Content, requestID)
		case "clear":
			if _, err := h.clear(ctx, sub.userID, sub.sessionID); err != nil {
				slog.Error("Failed to clear transcript", "error", err, "user_id", sub.userID)
				h.sendError(sub, "failed to clear transcript")
			}
		case "ping":
			if err := sub.writeJSON(map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			h.sendError(sub, "unknown message type")
		}
	}
}

func (h *Handler) handleSocketChat(ctx context.Context, sub *wsSubscriber, content, requestID string) {
	if !h.svc.Enabled() {
		h.metrics.ChatTurn(metrics.ResultRejected, 0)
		h.sendError(sub, "chat_disabled")
		return
	}
	if blankMessage(content) {
		h.sendError(sub, errEmptyMessage.Error())
		return
	}
	if !h.limiter.Allow(sub.userID) {
		h.metrics.ChatTurn(metrics.ResultRejected, 0)
		h.sendError(sub, "rate limit exceeded")
		return
	}
	if _, _, err := h.runTurn(ctx, sub.userID, sub.sessionID, content, "chat_ws", requestID); err != nil {
		slog.Error("Chat turn failed", "error", err, "user_id", sub.userID, "session_id", sub.sessionID)
		h.sendError(sub, "failed to process chat turn")
	}
}

func (h *Handler) sendError(sub *wsSubscriber, message string) {
	if err := sub.writeJSON(Event{Type: EventError, Error: message}); err != nil {
		slog.Debug("Failed to send WebSocket error", "error", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}
