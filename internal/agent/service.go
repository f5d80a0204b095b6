package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/upload"
)

// ErrChatDisabled is returned when no completion API is configured.
var ErrChatDisabled = errors.New("chat assistant is not configured")

// Phase is a step in the life of a single chat turn.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseSubmitted        Phase = "submitted"
	PhaseAwaitingResponse Phase = "awaiting_response"
	PhaseCompleted        Phase = "completed"
	PhaseFailed           Phase = "failed"
)

// Conversation is the per-session state a turn reads and updates.
type Conversation struct {
	Transcript domain.Transcript
	Uploads    *upload.Tracker
	// OnPhase, when set, is called as the turn moves between phases.
	OnPhase func(Phase)
}

// NewTranscript returns a transcript holding only the greeting.
func NewTranscript() domain.Transcript {
	return domain.Transcript{{Role: domain.RoleAssistant, Content: GreetingMessage}}
}

// TurnResult describes what a turn appended.
type TurnResult struct {
	Phase           Phase
	Appended        []domain.Turn
	ContextConsumed bool
	// Outgoing is the user message as sent to the API, including any
	// appended upload context.
	Outgoing string
	Err      error
}

// Service runs chat turns against a Completer.
type Service struct {
	completer Completer
	now       func() time.Time
	observe   func(Phase)
}

// NewService creates a chat service. A nil completer yields a disabled service.
func NewService(completer Completer) *Service {
	return &Service{
		completer: completer,
		now:       time.Now,
	}
}

// Enabled reports whether a completion API is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.completer != nil
}

func (s *Service) enter(conv *Conversation, p Phase) {
	if s.observe != nil {
		s.observe(p)
	}
	if conv.OnPhase != nil {
		conv.OnPhase(p)
	}
}

// Turn records message as a user turn, sends the conversation to the
// completion API, and appends the assistant reply. On failure a single error
// turn is appended instead. The user turn is kept either way.
func (s *Service) Turn(ctx context.Context, conv *Conversation, message string) TurnResult {
	if !s.Enabled() {
		return TurnResult{Phase: PhaseIdle, Err: ErrChatDisabled}
	}

	start := len(conv.Transcript)
	prior := conv.Transcript
	userTurn := domain.Turn{Role: domain.RoleUser, Content: message}
	conv.Transcript = append(conv.Transcript, userTurn)
	s.enter(conv, PhaseSubmitted)

	outgoing := message
	var consumed bool
	if conv.Uploads != nil {
		var snippet string
		snippet, consumed = conv.Uploads.ConsumeIfRelevant(message)
		outgoing += snippet
	}

	messages := make([]domain.Turn, 0, len(prior)+2)
	messages = append(messages, domain.Turn{Role: domain.RoleSystem, Content: SystemInstruction(s.now())})
	for _, t := range prior {
		if t.Role == domain.RoleUser || t.Role == domain.RoleAssistant {
			messages = append(messages, t)
		}
	}
	messages = append(messages, domain.Turn{Role: domain.RoleUser, Content: outgoing})

	s.enter(conv, PhaseAwaitingResponse)
	completion, err := s.completer.Complete(ctx, messages)
	if err != nil {
		slog.Warn("Chat completion failed", "error", err, "context_consumed", consumed)
		conv.Transcript = append(conv.Transcript, domain.Turn{Role: domain.RoleAssistant, Content: ErrorTurnText(err)})
		s.enter(conv, PhaseFailed)
		return TurnResult{
			Phase:           PhaseFailed,
			Appended:        appendedSince(conv.Transcript, start),
			ContextConsumed: consumed,
			Outgoing:        outgoing,
			Err:             err,
		}
	}

	conv.Transcript = append(conv.Transcript, domain.Turn{Role: domain.RoleAssistant, Content: CleanResponse(completion)})
	if consumed {
		conv.Transcript = append(conv.Transcript, domain.Turn{Role: domain.RoleAssistant, Content: ContextClearedNote})
	}
	s.enter(conv, PhaseCompleted)

	return TurnResult{
		Phase:           PhaseCompleted,
		Appended:        appendedSince(conv.Transcript, start),
		ContextConsumed: consumed,
		Outgoing:        outgoing,
	}
}

// Clear resets the conversation to the cleared greeting and drops any
// pending upload.
func (s *Service) Clear(conv *Conversation) {
	conv.Transcript = domain.Transcript{{Role: domain.RoleAssistant, Content: ClearedMessage}}
	if conv.Uploads != nil {
		conv.Uploads.Clear()
	}
}

func appendedSince(t domain.Transcript, start int) []domain.Turn {
	out := make([]domain.Turn, len(t)-start)
	copy(out, t[start:])
	return out
}
