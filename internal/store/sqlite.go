package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	chatMu sync.Mutex // serializes transcript writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		transcript_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);

	CREATE TABLE IF NOT EXISTS simulations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		sonar_type TEXT NOT NULL,
		area_name TEXT NOT NULL,
		target_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_simulations_user ON simulations(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a visitor by user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a visitor record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, user.LastSeenAt.Unix(),
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`,
		lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// GetChatSession retrieves the transcript of one visitor session.
func (s *SQLiteStore) GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	query := `
		SELECT user_id, session_id, transcript_json, created_at, updated_at
		FROM chat_sessions WHERE user_id = ? AND session_id = ?`

	var cs domain.ChatSession
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID, sessionID).Scan(
		&cs.UserID, &cs.SessionID, &cs.TranscriptJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}

	cs.CreatedAt = time.Unix(createdAt, 0)
	cs.UpdatedAt = time.Unix(updatedAt, 0)
	return &cs, nil
}

// UpsertChatSession creates or replaces a session transcript.
func (s *SQLiteStore) UpsertChatSession(ctx context.Context, cs *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (user_id, session_id, transcript_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			transcript_json = excluded.transcript_json,
			updated_at = excluded.updated_at`

	createdAt := cs.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return withConflictRetry(ctx, "upsert chat session", 3, 50*time.Millisecond, func() error {
		s.chatMu.Lock()
		defer s.chatMu.Unlock()
		if _, err := s.db.ExecContext(ctx, query,
			cs.UserID, cs.SessionID, cs.TranscriptJSON, createdAt.Unix(), time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("upsert chat session: %w", err)
		}
		return nil
	})
}

// DeleteChatSession removes a session transcript, retrying on SQLITE_BUSY.
func (s *SQLiteStore) DeleteChatSession(ctx context.Context, userID, sessionID string) error {
	return withConflictRetry(ctx, "delete chat session", 3, 100*time.Millisecond, func() error {
		s.chatMu.Lock()
		defer s.chatMu.Unlock()
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM chat_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID,
		); err != nil {
			return fmt.Errorf("delete chat session: %w", err)
		}
		return nil
	})
}

// CleanupExpiredChatSessions removes transcripts idle for longer than ttl.
// Rows for which live reports true are kept regardless of age; a nil live
// keeps nothing.
func (s *SQLiteStore) CleanupExpiredChatSessions(ctx context.Context, ttl time.Duration, live func(userID, sessionID string) bool) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()

	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, session_id FROM chat_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired chat sessions: %w", err)
	}
	type key struct{ userID, sessionID string }
	var expired []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.userID, &k.sessionID); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan expired chat session: %w", err)
		}
		if live != nil && live(k.userID, k.sessionID) {
			continue
		}
		expired = append(expired, k)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("cleanup expired chat sessions: %w", err)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("cleanup expired chat sessions: %w", err)
	}

	var deleted int64
	for _, k := range expired {
		result, err := s.db.ExecContext(ctx,
			`DELETE FROM chat_sessions WHERE user_id = ? AND session_id = ? AND updated_at < ?`,
			k.userID, k.sessionID, threshold)
		if err != nil {
			return deleted, fmt.Errorf("delete expired chat session: %w", err)
		}
		n, _ := result.RowsAffected()
		deleted += n
	}
	return deleted, nil
}

// ResetChatSessions removes every stored transcript.
func (s *SQLiteStore) ResetChatSessions(ctx context.Context) (int64, error) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions`)
	if err != nil {
		return 0, fmt.Errorf("reset chat sessions: %w", err)
	}
	return result.RowsAffected()
}

// RecordSimulation appends a simulation run to the visitor's history.
func (s *SQLiteStore) RecordSimulation(ctx context.Context, e *domain.SimulationEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO simulations (scan_id, user_id, sonar_type, area_name, target_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ScanID, e.UserID, e.SonarType, e.AreaName, e.TargetCount, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record simulation: %w", err)
	}
	return nil
}

// ListSimulations returns the visitor's most recent runs, newest first.
func (s *SQLiteStore) ListSimulations(ctx context.Context, userID string, limit int) ([]domain.SimulationEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, user_id, sonar_type, area_name, target_count, created_at
		FROM simulations WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query simulations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close simulation rows", "error", closeErr)
		}
	}()

	entries := []domain.SimulationEntry{}
	for rows.Next() {
		var e domain.SimulationEntry
		var createdAt int64
		if err := rows.Scan(&e.ScanID, &e.UserID, &e.SonarType, &e.AreaName, &e.TargetCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan simulation row: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulations: %w", err)
	}
	return entries, nil
}
