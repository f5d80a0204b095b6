package agent

import (
	"container/list"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ashureev/sonar-hub/internal/api"
	"github.com/ashureev/sonar-hub/internal/identity"
)

// SSEConnection represents a single SSE client connection.
type SSEConnection struct {
	ID        int64
	UserID    string
	SessionID string
	EventID   int64
	Writer    http.ResponseWriter
	Flusher   http.Flusher
	Done      chan struct{}
	mu        sync.Mutex
}

// QueuedMessage is an event kept for replay.
type QueuedMessage struct {
	EventID   int64
	Event     Event
	Timestamp time.Time
}

// SSEMessageQueue buffers events for reconnecting clients, sharded per
// session so one session's burst cannot evict another's events.
type SSEMessageQueue struct {
	mu      sync.RWMutex
	queues  map[string]*list.List
	maxSize int
}

// NewSSEMessageQueue creates a new per-session message queue.
func NewSSEMessageQueue(maxSize int) *SSEMessageQueue {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &SSEMessageQueue{
		queues:  make(map[string]*list.List),
		maxSize: maxSize,
	}
}

// Enqueue adds an event to the session's queue.
func (q *SSEMessageQueue) Enqueue(userID, sessionID string, eventID int64, ev Event) {
	key := sseSessionKey(userID, sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.queues[key]
	if !ok {
		l = list.New()
		q.queues[key] = l
	}
	l.PushBack(&QueuedMessage{EventID: eventID, Event: ev, Timestamp: time.Now()})
	for l.Len() > q.maxSize {
		l.Remove(l.Front())
	}
}

// GetMissedMessages returns the session's events after afterEventID.
func (q *SSEMessageQueue) GetMissedMessages(userID, sessionID string, afterEventID int64) []*QueuedMessage {
	key := sseSessionKey(userID, sessionID)
	q.mu.RLock()
	defer q.mu.RUnlock()

	l, ok := q.queues[key]
	if !ok {
		return nil
	}
	var missed []*QueuedMessage
	for e := l.Front(); e != nil; e = e.Next() {
		msg := e.Value.(*QueuedMessage)
		if msg.EventID > afterEventID {
			missed = append(missed, msg)
		}
	}
	return missed
}

// Prune drops a session's queue.
func (q *SSEMessageQueue) Prune(userID, sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, sseSessionKey(userID, sessionID))
}

func sseSessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// subscriber receives the events of one session.
type subscriber interface {
	key() string
	connID() int64
	send(eventID int64, ev Event)
}

func (c *SSEConnection) key() string   { return sseSessionKey(c.UserID, c.SessionID) }
func (c *SSEConnection) connID() int64 { return c.ID }
func (c *SSEConnection) send(eventID int64, ev Event) {
	sendToConnection(c, eventID, ev)
}

// streamHub fans session events out to SSE and WebSocket subscribers and
// keeps a replay queue.
type streamHub struct {
	mu           sync.RWMutex
	conns        map[string]map[int64]subscriber
	queue        *SSEMessageQueue
	counterMu    sync.Mutex
	eventCounter int64
	connCounter  int64
}

func newStreamHub() *streamHub {
	return &streamHub{
		conns: make(map[string]map[int64]subscriber),
		queue: NewSSEMessageQueue(100),
	}
}

func (s *streamHub) nextConnID() int64 {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()
	s.connCounter++
	return s.connCounter
}

func (s *streamHub) nextEventID() int64 {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()
	s.eventCounter++
	return s.eventCounter
}

// publish queues ev for replay and sends it to every open stream of the
// session.
func (s *streamHub) publish(userID, sessionID string, ev Event) {
	eventID := s.nextEventID()
	s.queue.Enqueue(userID, sessionID, eventID, ev)

	s.mu.RLock()
	sessionConns := s.conns[sseSessionKey(userID, sessionID)]
	subs := make([]subscriber, 0, len(sessionConns))
	for _, c := range sessionConns {
		subs = append(subs, c)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.send(eventID, ev)
	}
}

func (s *streamHub) register(sub subscriber) {
	key := sub.key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[key]; !ok {
		s.conns[key] = make(map[int64]subscriber)
	}
	s.conns[key][sub.connID()] = sub
}

func (s *streamHub) unregister(sub subscriber) {
	key := sub.key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionConns, ok := s.conns[key]; ok {
		delete(sessionConns, sub.connID())
		if len(sessionConns) == 0 {
			delete(s.conns, key)
		}
	}
}

// forget drops replay state for a session, e.g. after TTL eviction.
func (s *streamHub) forget(userID, sessionID string) {
	s.queue.Prune(userID, sessionID)
}

func sendToConnection(conn *SSEConnection, eventID int64, ev Event) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	select {
	case <-conn.Done:
		return
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal SSE event", "error", err, "conn_id", conn.ID)
		return
	}
	if err := writeSSEWithID(conn.Writer, eventID, string(ev.Type), string(data)); err != nil {
		slog.Warn("Failed to write to SSE connection", "error", err, "conn_id", conn.ID, "user_id", conn.UserID)
		return
	}
	conn.Flusher.Flush()
	conn.EventID = eventID
}

// HandleStream serves GET /api/chat/stream: phase changes and new turns of
// the caller's session, with Last-Event-ID replay.
//
//nolint:gocognit // SSE lifecycle handling intentionally keeps branches together.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lastEventID := int64(0)
	idHeader := r.Header.Get("Last-Event-ID")
	if idHeader == "" {
		idHeader = r.URL.Query().Get("lastEventId")
	}
	if idHeader != "" {
		if parsed, err := strconv.ParseInt(idHeader, 10, 64); err == nil {
			lastEventID = parsed
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", h.cfg.RetryDelay.Milliseconds())); err != nil {
		slog.Warn("failed to write SSE retry header", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	connID := h.streams.nextConnID()

	conn := &SSEConnection{
		ID:        connID,
		UserID:    userID,
		SessionID: sessionID,
		Writer:    w,
		Flusher:   flusher,
		Done:      make(chan struct{}),
	}
	h.streams.register(conn)
	defer func() {
		h.streams.unregister(conn)
		conn.mu.Lock()
		close(conn.Done)
		conn.mu.Unlock()
		slog.Info("Chat stream closed", "user_id", userID, "session_id", sessionID, "conn_id", connID)
	}()

	if lastEventID > 0 {
		for _, msg := range h.streams.queue.GetMissedMessages(userID, sessionID, lastEventID) {
			sendToConnection(conn, msg.EventID, msg.Event)
		}
	}

	eventID := h.streams.nextEventID()
	conn.mu.Lock()
	err := writeSSEWithID(w, eventID, "connected",
		fmt.Sprintf(`{"status":"connected","session_id":%q,"event_id":%d}`, sessionID, eventID))
	if err == nil {
		flusher.Flush()
	}
	conn.mu.Unlock()
	if err != nil {
		slog.Warn("failed to write SSE connected event", "error", err, "user_id", userID)
		return
	}

	slog.Info("Chat stream connected",
		"user_id", userID,
		"session_id", sessionID,
		"reconnect", lastEventID > 0,
	)

	keepalive := time.NewTicker(h.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-keepalive.C:
			conn.mu.Lock()
			if err := writeSSE(w, "ping", `{"status":"alive"}`); err != nil {
				conn.mu.Unlock()
				slog.Warn("failed to write SSE keepalive ping", "error", err, "user_id", userID)
				return
			}
			flusher.Flush()
			conn.mu.Unlock()
		}
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEWithID(w io.Writer, id int64, event, data string) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
