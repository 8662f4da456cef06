// internal/types/interfaces.go
package types

import (
	"context"
)

// SessionStore persists the whole session collection as a single record.
// Load never fails: a missing or unreadable record yields an empty collection.
type SessionStore interface {
	Load(ctx context.Context) []Session
	Save(ctx context.Context, sessions []Session) error
}

// MessageAppender is the slice of the session model used by components that
// deliver a result into a session after an asynchronous call.
type MessageAppender interface {
	AppendMessage(id SessionID, msg Message) (userCount int, ok bool)
}

// SessionRenamer is the slice of the session model used by title resolution.
type SessionRenamer interface {
	RenameSession(id SessionID, title string) bool
}
