// Package session holds the authoritative in-memory session collection.
//
// Every mutating operation runs to completion under the model's lock and
// writes the resulting snapshot through the SessionStore before returning, so
// the stored record mirrors memory whenever no operation is in flight.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/docchat/internal/types"
)

// Model owns the session collection and the active-session pointer.
type Model struct {
	mu       sync.Mutex
	store    types.SessionStore
	sessions []types.Session
	activeID types.SessionID
	observer func(types.Change)
}

// Option configures optional behavior on a Model.
type Option func(*Model)

// WithObserver sets a callback invoked after every applied mutation. The
// callback runs outside the model's lock.
func WithObserver(fn func(types.Change)) Option {
	return func(m *Model) { m.observer = fn }
}

// New creates an empty model backed by store. Call Load to restore the
// persisted collection.
func New(store types.SessionStore, opts ...Option) *Model {
	m := &Model{
		store:    store,
		sessions: []types.Session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the in-memory collection with the stored one. The first
// session becomes active.
func (m *Model) Load(ctx context.Context) {
	sessions := m.store.Load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
	m.activeID = ""
	if len(sessions) > 0 {
		m.activeID = sessions[0].ID
	}
}

// CreateSession prepends a fresh session and makes it active.
func (m *Model) CreateSession() types.Session {
	m.mu.Lock()
	session := types.Session{
		ID:        types.NewSessionID(),
		Title:     types.DefaultTitle,
		CreatedAt: time.Now(),
		Messages:  []types.Message{},
	}
	m.sessions = append([]types.Session{session}, m.sessions...)
	m.activeID = session.ID
	m.persistLocked()
	m.mu.Unlock()

	m.notify(types.Change{Kind: types.ChangeCreated, SessionID: session.ID})
	return session.Clone()
}

// DeleteSession removes the session. If it was active, the first remaining
// session becomes active, or none when the collection is empty.
func (m *Model) DeleteSession(id types.SessionID) bool {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	m.sessions = append(m.sessions[:idx:idx], m.sessions[idx+1:]...)
	m.repairActiveLocked()
	m.persistLocked()
	m.mu.Unlock()

	m.notify(types.Change{Kind: types.ChangeDeleted, SessionID: id})
	return true
}

// RenameSession replaces the title. Blank titles and unknown ids are ignored.
func (m *Model) RenameSession(id types.SessionID, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}

	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		slog.Debug("rename dropped, session gone", "session_id", string(id))
		return false
	}
	m.sessions[idx].Title = title
	m.persistLocked()
	m.mu.Unlock()

	m.notify(types.Change{Kind: types.ChangeRenamed, SessionID: id, Title: title})
	return true
}

// AppendMessage adds msg to the end of the session and reports how many user
// messages the session holds afterwards. When the session no longer exists
// the message is dropped and ok is false.
func (m *Model) AppendMessage(id types.SessionID, msg types.Message) (userCount int, ok bool) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		slog.Debug("append dropped, session gone", "session_id", string(id), "role", string(msg.Role))
		return 0, false
	}
	m.sessions[idx].Messages = append(m.sessions[idx].Messages, msg)
	userCount = m.sessions[idx].UserMessageCount()
	m.persistLocked()
	m.mu.Unlock()

	m.notify(types.Change{Kind: types.ChangeAppended, SessionID: id, Message: &msg})
	return userCount, true
}

// SetActive points the active reference at id. Unknown ids are ignored.
func (m *Model) SetActive(id types.SessionID) bool {
	m.mu.Lock()
	if m.indexLocked(id) < 0 {
		m.mu.Unlock()
		return false
	}
	m.activeID = id
	m.mu.Unlock()

	m.notify(types.Change{Kind: types.ChangeSelected, SessionID: id})
	return true
}

// ActiveID returns the active session id, or "" when none is active.
func (m *Model) ActiveID() types.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Active returns a copy of the active session.
func (m *Model) Active() (types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(m.activeID)
	if idx < 0 {
		return types.Session{}, false
	}
	return m.sessions[idx].Clone(), true
}

// Session returns a copy of the session with the given id.
func (m *Model) Session(id types.SessionID) (types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return types.Session{}, false
	}
	return m.sessions[idx].Clone(), true
}

// Sessions returns a copy of the collection, newest first.
func (m *Model) Sessions() []types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.sessions)
}

func (m *Model) indexLocked(id types.SessionID) int {
	if id == "" {
		return -1
	}
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) repairActiveLocked() {
	if m.indexLocked(m.activeID) >= 0 {
		return
	}
	m.activeID = ""
	if len(m.sessions) > 0 {
		m.activeID = m.sessions[0].ID
	}
}

// persistLocked saves the current snapshot. Caller must hold m.mu so that
// snapshots reach the store in mutation order.
func (m *Model) persistLocked() {
	if err := m.store.Save(context.Background(), cloneAll(m.sessions)); err != nil {
		slog.Warn("persist sessions failed", "error", err)
	}
}

func (m *Model) notify(change types.Change) {
	if m.observer != nil {
		m.observer(change)
	}
}

func cloneAll(sessions []types.Session) []types.Session {
	out := make([]types.Session, len(sessions))
	for i := range sessions {
		out[i] = sessions[i].Clone()
	}
	return out
}
