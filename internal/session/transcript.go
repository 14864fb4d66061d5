package session

import "strings"

// Turn is one transcript entry.
type Turn struct {
	Role    string // analytics.RoleUser or analytics.RoleAssistant
	Content string
}

// Transcript is a bounded rolling window of chat turns. Oldest turns are
// dropped once the limit is reached. Not safe for concurrent use; the
// Manager serializes access per chat.
type Transcript struct {
	limit int
	turns []Turn
}

// NewTranscript creates a transcript bounded to limit turns.
func NewTranscript(limit int) *Transcript {
	return &Transcript{limit: limit}
}

// Append adds a turn, evicting the oldest when over the limit.
func (t *Transcript) Append(role, content string) {
	t.turns = append(t.turns, Turn{Role: role, Content: content})
	if len(t.turns) > t.limit {
		t.turns = t.turns[len(t.turns)-t.limit:]
	}
}

// Len returns the number of retained turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Turns returns the retained turns, oldest first.
func (t *Transcript) Turns() []Turn {
	return t.turns
}

// Format renders the transcript with role markers, blank-line separated.
func (t *Transcript) Format() string {
	if len(t.turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, turn := range t.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		marker := "🤖"
		if turn.Role == "user" {
			marker = "👤"
		}
		b.WriteString(marker)
		b.WriteString(" ")
		b.WriteString(turn.Content)
	}
	return b.String()
}
