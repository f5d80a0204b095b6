package agent

import (
	"context"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// Completion is the text returned by a chat completion call.
type Completion struct {
	Content      string
	FinishReason string
}

// Completer sends a conversation to a hosted chat completion API.
type Completer interface {
	// Complete makes a single attempt. messages are ordered oldest first and
	// start with the system instruction.
	Complete(ctx context.Context, messages []domain.Turn) (Completion, error)
}

// Ensure PerplexityClient implements Completer.
var _ Completer = (*PerplexityClient)(nil)
