package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// ConversationLogEvent is one line of a session's conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records chat traffic.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

type fileConversationLogger struct {
	dir    string
	events chan ConversationLogEvent
	logger *slog.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

// NewConversationLogger returns a logger that appends events to
// <dir>/<user>/<session>.ndjson from a background goroutine. Events are
// dropped when the queue is full. A disabled config yields a no-op logger.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if cfg.Dir == "" {
		return nil, errors.New("conversation log dir is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &fileConversationLogger{
		dir:    cfg.Dir,
		events: make(chan ConversationLogEvent, cfg.QueueSize),
		logger: logger.With("component", "conversation_logger"),
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}
	select {
	case l.events <- event:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"user_id", event.UserID, "session_id", event.SessionID, "event_type", event.EventType)
	}
}

func (l *fileConversationLogger) Close() error {
	l.once.Do(func() { close(l.events) })
	l.wg.Wait()
	return nil
}

func (l *fileConversationLogger) run() {
	defer l.wg.Done()
	for event := range l.events {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write conversation log", "error", err, "user_id", event.UserID)
		}
	}
}

func (l *fileConversationLogger) write(event ConversationLogEvent) error {
	dir := filepath.Join(l.dir, safePathSegment(event.UserID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create user log dir: %w", err)
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	path := filepath.Join(dir, safePathSegment(event.SessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path segments are sanitized
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append log line: %w", err)
	}
	return f.Close()
}

var (
	ansiPattern    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	unsafeSegment  = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	blankLinesExpr = regexp.MustCompile(`\n{3,}`)
)

// cleanForReadability strips terminal escape codes and collapses runs of
// blank lines.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLinesExpr.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func safePathSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
