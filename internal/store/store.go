// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// Repository persists visitors, chat transcripts, and simulation history.
type Repository interface {
	// GetUser retrieves a visitor by user ID. It returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a visitor record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetChatSession retrieves the transcript of one visitor session.
	// It returns nil, nil when the session has no stored transcript.
	GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error)

	// UpsertChatSession creates or replaces a session transcript.
	UpsertChatSession(ctx context.Context, session *domain.ChatSession) error

	// DeleteChatSession removes a session transcript.
	DeleteChatSession(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredChatSessions removes transcripts idle for longer than ttl,
	// except those live reports as belonging to an active session.
	CleanupExpiredChatSessions(ctx context.Context, ttl time.Duration, live func(userID, sessionID string) bool) (int64, error)

	// ResetChatSessions removes every stored transcript. Called at startup so
	// conversations never outlive the process.
	ResetChatSessions(ctx context.Context) (int64, error)

	// RecordSimulation appends a simulation run to the visitor's history.
	RecordSimulation(ctx context.Context, entry *domain.SimulationEntry) error

	// ListSimulations returns the visitor's most recent runs, newest first.
	ListSimulations(ctx context.Context, userID string, limit int) ([]domain.SimulationEntry, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
