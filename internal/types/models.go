// internal/types/models.go
package types

import (
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultTitle is the title every session starts with until a title is resolved.
const DefaultTitle = "New Chat"

type Message struct {
	Role      Role      `json:"role" yaml:"role"`
	Text      string    `json:"text" yaml:"text"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

type Session struct {
	ID        SessionID `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Messages  []Message `json:"messages" yaml:"messages"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Text: text, Timestamp: time.Now()}
}

// UserMessageCount returns how many messages in the session were sent by the user.
func (s *Session) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Clone returns a deep copy whose message slice does not alias the original.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// ChangeKind describes a mutation of the session collection.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
	ChangeAppended ChangeKind = "appended"
	ChangeSelected ChangeKind = "selected"
)

// Change is emitted after every applied mutation. Message is set only for
// ChangeAppended, Title only for ChangeRenamed.
type Change struct {
	Kind      ChangeKind
	SessionID SessionID
	Title     string
	Message   *Message
}
