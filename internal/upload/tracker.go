// Package upload tracks the most recent file a session uploaded for chat.
package upload

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// MaxPreviewChars bounds the text preview kept for a data file.
const MaxPreviewChars = 2000

// Kind tags which variant a Pending slot holds.
type Kind string

const (
	KindNone  Kind = "none"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

var (
	imageKeywords = []string{"image", "picture", "photo", "visual"}
	textKeywords  = []string{"data", "csv", "text", "file"}
)

// Pending is the upload slot. Exactly one variant is active: for KindImage
// Handle and Thumbnail are set, for KindText Preview is set.
type Pending struct {
	Kind      Kind   `json:"kind"`
	Name      string `json:"name,omitempty"`
	Handle    string `json:"handle,omitempty"`
	Preview   string `json:"preview,omitempty"`
	Thumbnail []byte `json:"-"`
}

// Tracker holds a session's pending upload. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	pending Pending
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: Pending{Kind: KindNone}}
}

// SetImage records an uploaded image, replacing any pending upload.
func (t *Tracker) SetImage(name, handle string, thumbnail []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = Pending{Kind: KindImage, Name: name, Handle: handle, Thumbnail: thumbnail}
}

// SetText records a data file preview, replacing any pending upload. The
// preview is truncated to MaxPreviewChars characters.
func (t *Tracker) SetText(name, preview string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = Pending{Kind: KindText, Name: name, Preview: truncate(preview, MaxPreviewChars)}
}

// Pending returns a copy of the current slot.
func (t *Tracker) Pending() Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Clear empties the slot.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = Pending{Kind: KindNone}
}

// ConsumeIfRelevant checks message against the pending upload. When the
// message mentions the file name or one of the kind's keywords the slot is
// cleared and consumed is true. For a text upload snippet holds the context
// block to append to the outgoing message; image uploads yield no snippet.
func (t *Tracker) ConsumeIfRelevant(message string) (snippet string, consumed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pending
	lower := strings.ToLower(message)

	switch p.Kind {
	case KindText:
		if !mentions(lower, p.Name, textKeywords) {
			return "", false
		}
		snippet = "\n\n--- Context from uploaded file: " + p.Name + " ---\n" + p.Preview + "\n--- End of context ---"
	case KindImage:
		if !mentions(lower, p.Name, imageKeywords) {
			return "", false
		}
	default:
		return "", false
	}

	t.pending = Pending{Kind: KindNone}
	return snippet, true
}

func mentions(lowerMsg, name string, keywords []string) bool {
	if name != "" && strings.Contains(lowerMsg, strings.ToLower(name)) {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lowerMsg, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
