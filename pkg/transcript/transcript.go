// Package transcript keeps a client-side record of completed
// conversation turns, keyed by session. The backend owns the
// authoritative history; this cache exists so the CLI can redraw a
// conversation without a round trip and so turn events can be published
// with the full exchange attached.
package transcript

import (
	"context"
	"time"

	"github.com/atlaschat/atlas/pkg/chat"
)

// Role identifies who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one recorded turn half: the user's message or the
// assistant's finished reply.
type Entry struct {
	Role      Role
	Text      string
	Reasoning string
	Phase     chat.Phase
	Stats     map[string]any
	At        time.Time
}

// Store defines the interface for recording and replaying transcripts.
type Store interface {
	// Append records an entry at the end of a session's transcript.
	Append(ctx context.Context, sessionID string, entry Entry) error

	// History returns a session's entries in insertion order.
	History(ctx context.Context, sessionID string) ([]Entry, error)

	// Clear drops all entries for a session.
	Clear(ctx context.Context, sessionID string) error

	// Sessions returns the ids of all sessions with at least one entry.
	Sessions(ctx context.Context) ([]string, error)

	// Close closes the store and releases any resources.
	Close() error
}
