package agent

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConversationLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(ConversationLogEvent{
		UserID:     "anon_1",
		SessionID:  "tab-1",
		Channel:    "chat_http",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: "what does a hyperbola in a radargram mean?\n\n\n\nthanks",
	})

	path := filepath.Join(dir, "anon_1", "tab-1.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Channel != "chat_http" {
		t.Fatalf("unexpected Channel: %q", got.Channel)
	}
	if !strings.HasPrefix(got.ContentRaw, "what does a hyperbola") {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content == "" {
		t.Fatal("expected cleaned content to be populated")
	}
	if got.Timestamp == "" {
		t.Fatal("expected timestamp to be filled in")
	}
}

func TestConversationLoggerSanitizesPathSegments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(ConversationLogEvent{
		UserID:     "../../etc",
		SessionID:  "tab/1",
		Channel:    "chat_ws",
		ContentRaw: "Side-scan sonar images the seabed.",
	})

	entries, err := os.ReadDir(dir)
	deadline := time.Now().Add(2 * time.Second)
	for (err != nil || len(entries) == 0) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		entries, err = os.ReadDir(dir)
	}
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one user directory inside %s, got %v (err %v)", dir, entries, err)
	}
	if entries[0].Name() != ".._.._etc" {
		t.Fatalf("unexpected directory name %q", entries[0].Name())
	}
}

func TestDisabledConversationLoggerIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: false, Dir: t.TempDir()}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{UserID: "u", SessionID: "s", ContentRaw: "ignored"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[1mTarget\x1b[0m detected"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[1m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if !strings.Contains(clean, "Target detected") {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
