package session

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the TTL worker looks for idle sessions.
const DefaultSweepInterval = 5 * time.Minute

// TranscriptStore is the subset of the repository the TTL worker needs.
type TranscriptStore interface {
	DeleteChatSession(ctx context.Context, userID, sessionID string) error
	CleanupExpiredChatSessions(ctx context.Context, ttl time.Duration, live func(userID, sessionID string) bool) (int64, error)
}

// CleanupCallback is called for each session evicted by the TTL worker.
type CleanupCallback func(key Key)

// StartTTLWorker runs a background goroutine that periodically evicts
// sessions idle for longer than ttl, along with their stored transcripts.
// It stops when ctx is canceled; the returned channel is closed on exit.
func StartTTLWorker(ctx context.Context, m *Manager, repo TranscriptStore, ttl, interval time.Duration, onCleanup CleanupCallback) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, m, repo, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Sweep evicts idle sessions once and returns how many were removed.
func Sweep(ctx context.Context, m *Manager, repo TranscriptStore, ttl time.Duration, onCleanup CleanupCallback) int {
	idle := m.Idle(ttl)
	for _, key := range idle {
		slog.Info("TTL worker evicting session", "user_id", key.UserID, "session_id", key.SessionID)
		m.Remove(key.UserID, key.SessionID)

		if onCleanup != nil {
			onCleanup(key)
		}

		if repo == nil {
			continue
		}
		if err := repo.DeleteChatSession(ctx, key.UserID, key.SessionID); err != nil {
			slog.Warn("TTL worker failed to delete chat session",
				"error", err,
				"user_id", key.UserID,
				"session_id", key.SessionID)
		}
	}

	if len(idle) > 0 {
		slog.Info("TTL worker cleanup completed", "cleaned", len(idle))
	}

	// Live sessions keep their transcript however old the last turn is.
	if repo != nil {
		if deleted, err := repo.CleanupExpiredChatSessions(ctx, ttl, m.Live); err != nil {
			slog.Error("TTL worker failed to cleanup orphaned chat sessions", "error", err)
		} else if deleted > 0 {
			slog.Info("TTL worker cleaned up orphaned chat sessions", "count", deleted)
		}
	}
	return len(idle)
}
