// Package agent implements the sonar chat assistant.
package agent

import (
	"time"

	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/upload"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the result of one chat turn.
type ChatResponse struct {
	Phase           Phase         `json:"phase"`
	Appended        []domain.Turn `json:"appended"`
	ContextConsumed bool          `json:"context_consumed"`
	Error           string        `json:"error,omitempty"`
	Transcript      []domain.Turn `json:"transcript"`
	Total           int           `json:"total"`
}

// TranscriptView is the body of GET /api/chat.
type TranscriptView struct {
	Enabled bool           `json:"enabled"`
	Turns   []domain.Turn  `json:"turns"`
	Total   int            `json:"total"`
	Pending upload.Pending `json:"pending_upload"`
}

// EventType categorizes stream events.
type EventType string

const (
	// EventPhase reports a turn moving to a new phase.
	EventPhase EventType = "phase"
	// EventTurn carries a newly appended transcript turn.
	EventTurn EventType = "turn"
	// EventCleared reports that the transcript was reset.
	EventCleared EventType = "cleared"
	// EventError reports a request-level error.
	EventError EventType = "error"
)

// Event is pushed to SSE and WebSocket listeners of a session.
type Event struct {
	Type  EventType    `json:"type"`
	Phase Phase        `json:"phase,omitempty"`
	Turn  *domain.Turn `json:"turn,omitempty"`
	Error string       `json:"error,omitempty"`
}

// HandlerConfig holds chat handler tuning.
type HandlerConfig struct {
	RateLimit         int
	RateWindow        time.Duration
	TurnTimeout       time.Duration
	MaxRequestBody    int64
	DisplayLimit      int
	KeepaliveInterval time.Duration
	RetryDelay        time.Duration
	// AllowedOrigin restricts WebSocket upgrades outside development.
	AllowedOrigin string
	IsDev         bool
}

// DefaultHandlerConfig returns the default chat handler configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		RateLimit:         10,
		RateWindow:        time.Minute,
		TurnTimeout:       DefaultTimeout,
		MaxRequestBody:    1 << 20,
		DisplayLimit:      30,
		KeepaliveInterval: 10 * time.Second,
		RetryDelay:        5 * time.Second,
	}
}
