// Package session stores per-conversation transcripts. Sessions are created
// lazily on first reference and their transcripts are append-only.
package session

import "context"

// Speaker roles for transcript turns.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// Turn is one message in a session transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Human builds a human turn.
func Human(content string) Turn {
	return Turn{Role: RoleHuman, Content: content}
}

// Assistant builds an assistant turn.
func Assistant(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Store is the session backend contract. Implementations must allow
// concurrent calls for distinct session IDs without blocking each other.
type Store interface {
	// Lock acquires the per-session mutex, creating the session if needed,
	// and returns the unlock function. Turn processing for one session is
	// serialized by holding this lock across the whole turn.
	Lock(id string) (unlock func())

	// Transcript returns a copy of the session's turns, oldest first.
	Transcript(ctx context.Context, id string) ([]Turn, error)

	// Append adds turns to the session transcript.
	Append(ctx context.Context, id string, turns ...Turn) error

	// SetLastIntent records the most recently resolved intent label.
	SetLastIntent(ctx context.Context, id, intent string) error

	// LastIntent returns the most recently resolved intent label, or "" for
	// a fresh session.
	LastIntent(ctx context.Context, id string) (string, error)
}
