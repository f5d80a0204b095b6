package domain

import (
	"time"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single chat message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is an ordered list of turns. It only grows, except when cleared.
type Transcript []Turn

// Last returns the newest n turns, or all of them when n <= 0.
func (t Transcript) Last(n int) Transcript {
	if n <= 0 || n >= len(t) {
		return t
	}
	return t[len(t)-n:]
}

// ChatSession stores a persisted transcript for a visitor session.
type ChatSession struct {
	UserID         string
	SessionID      string
	TranscriptJSON string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SimulationEntry is the persisted metadata of a simulation run.
type SimulationEntry struct {
	ScanID      string    `json:"scan_id"`
	UserID      string    `json:"-"`
	SonarType   string    `json:"sonar_type"`
	AreaName    string    `json:"area_name"`
	TargetCount int       `json:"target_count"`
	CreatedAt   time.Time `json:"created_at"`
}
