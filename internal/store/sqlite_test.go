package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/sonar-hub/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing, err := s.GetUser(ctx, "anon_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.UpsertUser(ctx, &domain.User{
		UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}))

	later := now.Add(time.Minute)
	require.NoError(t, s.UpdateLastSeen(ctx, "anon_1", later))

	u, err := s.GetUser(ctx, "anon_1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "anon-1", u.Username)
	assert.Equal(t, later.Unix(), u.LastSeenAt.Unix())
	assert.NoError(t, s.Ping(ctx))
}

func TestChatSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChatSession(ctx, &domain.ChatSession{
		UserID: "u", SessionID: "tab-1", TranscriptJSON: `[{"role":"assistant","content":"hi"}]`,
	}))
	require.NoError(t, s.UpsertChatSession(ctx, &domain.ChatSession{
		UserID: "u", SessionID: "tab-1", TranscriptJSON: `[]`,
	}))

	cs, err := s.GetChatSession(ctx, "u", "tab-1")
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, `[]`, cs.TranscriptJSON)

	other, err := s.GetChatSession(ctx, "u", "tab-2")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, s.DeleteChatSession(ctx, "u", "tab-1"))
	cs, err = s.GetChatSession(ctx, "u", "tab-1")
	require.NoError(t, err)
	assert.Nil(t, cs)
}

func TestCleanupAndResetChatSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, sid := range []string{"a", "b"} {
		require.NoError(t, s.UpsertChatSession(ctx, &domain.ChatSession{
			UserID: "u", SessionID: sid, TranscriptJSON: `[]`,
		}))
	}
	_, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE session_id = 'a'`,
		time.Now().Add(-2*time.Hour).Unix())
	require.NoError(t, err)

	n, err := s.CleanupExpiredChatSessions(ctx, time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.ResetChatSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCleanupExpiredChatSessions_KeepsLiveSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, sid := range []string{"browsing", "gone"} {
		require.NoError(t, s.UpsertChatSession(ctx, &domain.ChatSession{
			UserID: "u", SessionID: sid, TranscriptJSON: `[]`,
		}))
	}
	_, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ?`,
		time.Now().Add(-2*time.Hour).Unix())
	require.NoError(t, err)

	live := func(userID, sessionID string) bool { return userID == "u" && sessionID == "browsing" }
	n, err := s.CleanupExpiredChatSessions(ctx, time.Hour, live)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	kept, err := s.GetChatSession(ctx, "u", "browsing")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	gone, err := s.GetChatSession(ctx, "u", "gone")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSimulationHistoryNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"SIM1", "SIM2", "SIM3"} {
		require.NoError(t, s.RecordSimulation(ctx, &domain.SimulationEntry{
			ScanID: id, UserID: "u", SonarType: "Side-Scan Sonar (Sea)", AreaName: "Bay",
			TargetCount: i, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.RecordSimulation(ctx, &domain.SimulationEntry{
		ScanID: "SIMX", UserID: "someone-else", SonarType: "GPR (Land)", AreaName: "Field",
	}))

	entries, err := s.ListSimulations(ctx, "u", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SIM3", entries[0].ScanID)
	assert.Equal(t, "SIM2", entries[1].ScanID)

	none, err := s.ListSimulations(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWithConflictRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withConflictRetry(ctx, "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	plain := errors.New("constraint failed")
	err = withConflictRetry(ctx, "op", 3, time.Millisecond, func() error {
		calls++
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, calls)

	err = withConflictRetry(ctx, "op", 2, time.Millisecond, func() error {
		return errors.New("SQLITE_BUSY")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
}

func TestIsConflictError(t *testing.T) {
	assert.False(t, IsConflictError(nil))
	assert.True(t, IsConflictError(errors.New("database is locked")))
	assert.False(t, IsConflictError(errors.New("no such table")))
}
