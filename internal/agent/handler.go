package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/sonar-hub/internal/api"
	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/identity"
	"github.com/ashureev/sonar-hub/internal/metrics"
	"github.com/ashureev/sonar-hub/internal/session"
)

// TranscriptStore persists session transcripts.
type TranscriptStore interface {
	GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error)
	UpsertChatSession(ctx context.Context, session *domain.ChatSession) error
	DeleteChatSession(ctx context.Context, userID, sessionID string) error
}

var errEmptyMessage = errors.New("message is required")

// Handler serves the chat HTTP, SSE, and WebSocket endpoints.
type Handler struct {
	svc      *Service
	repo     TranscriptStore
	sessions *session.Manager
	limiter  *RateLimiter
	metrics  *metrics.Metrics
	log      ConversationLogger
	streams  *streamHub
	cfg      HandlerConfig
	done     chan struct{}
}

// NewHandler creates a chat handler. A nil logger disables conversation logs.
func NewHandler(svc *Service, repo TranscriptStore, sessions *session.Manager, m *metrics.Metrics, log ConversationLogger, cfg HandlerConfig) *Handler {
	if log == nil {
		log = noopConversationLogger{}
	}
	def := DefaultHandlerConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = def.TurnTimeout
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = def.MaxRequestBody
	}
	if cfg.DisplayLimit <= 0 {
		cfg.DisplayLimit = def.DisplayLimit
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = def.KeepaliveInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}

	return &Handler{
		svc:      svc,
		repo:     repo,
		sessions: sessions,
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		metrics:  m,
		log:      log,
		streams:  newStreamHub(),
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// RegisterRoutes registers chat routes. Identity middleware must already be
// installed on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/", h.HandleTranscript)
		r.Post("/", h.HandleChat)
		r.Delete("/", h.HandleClear)
		r.Get("/stream", h.HandleStream)
	})
	r.Get("/ws/chat", h.HandleWebSocket)
}

// Close stops background work and flushes the conversation log.
func (h *Handler) Close() {
	close(h.done)
	h.limiter.Stop()
	if err := h.log.Close(); err != nil {
		slog.Warn("failed to close conversation logger", "error", err)
	}
}

// ForgetSession drops stream replay state for an evicted session.
func (h *Handler) ForgetSession(userID, sessionID string) {
	h.streams.forget(userID, sessionID)
}

// HandleTranscript handles GET /api/chat.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := h.cfg.DisplayLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	st := h.sessions.Get(userID, sessionID)
	transcript, err := h.loadTranscript(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("Failed to load transcript", "error", err, "user_id", userID, "session_id", sessionID)
		api.Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	api.JSON(w, http.StatusOK, TranscriptView{
		Enabled: h.svc.Enabled(),
		Turns:   transcript.Last(limit),
		Total:   len(transcript),
		Pending: st.Uploads.Pending(),
	})
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.svc.Enabled() {
		h.metrics.ChatTurn(metrics.ResultRejected, 0)
		api.ErrorDetail(w, http.StatusServiceUnavailable, "chat_disabled", ErrChatDisabled.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBody)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if blankMessage(req.Message) {
		api.Error(w, http.StatusBadRequest, errEmptyMessage.Error())
		return
	}

	if !h.limiter.Allow(userID) {
		h.metrics.ChatTurn(metrics.ResultRejected, 0)
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	res, transcript, err := h.runTurn(r.Context(), userID, sessionID, req.Message, "chat_http", chiMiddleware.GetReqID(r.Context()))
	if err != nil {
		slog.Error("Chat turn failed", "error", err, "user_id", userID, "session_id", sessionID)
		api.Error(w, http.StatusInternalServerError, "failed to process chat turn")
		return
	}

	resp := ChatResponse{
		Phase:           res.Phase,
		Appended:        res.Appended,
		ContextConsumed: res.ContextConsumed,
		Transcript:      transcript.Last(h.cfg.DisplayLimit),
		Total:           len(transcript),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleClear handles DELETE /api/chat.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	transcript, err := h.clear(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("Failed to clear transcript", "error", err, "user_id", userID, "session_id", sessionID)
		api.Error(w, http.StatusInternalServerError, "failed to clear transcript")
		return
	}
	api.JSON(w, http.StatusOK, TranscriptView{
		Enabled: h.svc.Enabled(),
		Turns:   transcript,
		Total:   len(transcript),
	})
}

// blankMessage reports whether a chat message has no visible content. The
// message itself is stored as typed.
func blankMessage(message string) bool {
	return strings.TrimSpace(message) == ""
}

// runTurn executes one chat turn for a session under the session's turn lock
// and persists the resulting transcript.
func (h *Handler) runTurn(ctx context.Context, userID, sessionID, message, channel, requestID string) (TurnResult, domain.Transcript, error) {
	if blankMessage(message) {
		return TurnResult{}, nil, errEmptyMessage
	}

	st := h.sessions.Get(userID, sessionID)
	unlock := st.LockTurn()
	defer unlock()

	transcript, err := h.loadTranscript(ctx, userID, sessionID)
	if err != nil {
		return TurnResult{}, nil, err
	}

	conv := &Conversation{
		Transcript: transcript,
		Uploads:    st.Uploads,
		OnPhase: func(p Phase) {
			h.streams.publish(userID, sessionID, Event{Type: EventPhase, Phase: p})
		},
	}

	slog.Info("Chat turn",
		"user_id", userID,
		"session_id", sessionID,
		"channel", channel,
		"message_length", len(message),
	)
	h.logMessage(userID, sessionID, channel, "outbound", "chat_user_message", message, map[string]any{
		"request_id": requestID,
	})

	turnCtx, cancel := context.WithTimeout(ctx, h.cfg.TurnTimeout)
	defer cancel()
	start := time.Now()
	res := h.svc.Turn(turnCtx, conv, message)
	elapsed := time.Since(start)

	switch res.Phase {
	case PhaseCompleted:
		h.metrics.ChatTurn(string(PhaseCompleted), elapsed)
	case PhaseFailed:
		h.metrics.ChatTurn(string(PhaseFailed), elapsed)
	}

	// Persist with a fresh context so a client disconnect mid-turn does not
	// lose the transcript.
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer saveCancel()
	if err := h.saveTranscript(saveCtx, userID, sessionID, conv.Transcript); err != nil {
		return res, conv.Transcript, err
	}

	// The user turn is not echoed on the stream; listeners already know it.
	for i := range res.Appended {
		if res.Appended[i].Role == domain.RoleUser {
			continue
		}
		turn := res.Appended[i]
		h.streams.publish(userID, sessionID, Event{Type: EventTurn, Turn: &turn})
		h.logMessage(userID, sessionID, channel, "inbound", "chat_assistant_message", turn.Content, map[string]any{
			"request_id":       requestID,
			"phase":            res.Phase,
			"context_consumed": res.ContextConsumed,
		})
	}
	return res, conv.Transcript, nil
}

func (h *Handler) clear(ctx context.Context, userID, sessionID string) (domain.Transcript, error) {
	st := h.sessions.Get(userID, sessionID)
	unlock := st.LockTurn()
	defer unlock()

	conv := &Conversation{Uploads: st.Uploads}
	h.svc.Clear(conv)
	if err := h.saveTranscript(ctx, userID, sessionID, conv.Transcript); err != nil {
		return nil, err
	}
	h.streams.publish(userID, sessionID, Event{Type: EventCleared})
	slog.Info("Chat transcript cleared", "user_id", userID, "session_id", sessionID)
	return conv.Transcript, nil
}

func (h *Handler) loadTranscript(ctx context.Context, userID, sessionID string) (domain.Transcript, error) {
	cs, err := h.repo.GetChatSession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get chat session: %w", err)
	}
	if cs == nil || cs.TranscriptJSON == "" {
		return NewTranscript(), nil
	}
	var t domain.Transcript
	if err := json.Unmarshal([]byte(cs.TranscriptJSON), &t); err != nil {
		slog.Warn("Discarding unreadable transcript", "error", err, "user_id", userID, "session_id", sessionID)
		return NewTranscript(), nil
	}
	return t, nil
}

func (h *Handler) saveTranscript(ctx context.Context, userID, sessionID string, t domain.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if err := h.repo.UpsertChatSession(ctx, &domain.ChatSession{
		UserID:         userID,
		SessionID:      sessionID,
		TranscriptJSON: string(data),
	}); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (h *Handler) logMessage(userID, sessionID, channel, direction, eventType, content string, meta map[string]any) {
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}
