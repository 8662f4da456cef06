// internal/state/session.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/docchat/internal/types"
)

// DefaultKey is the record name the session collection is stored under.
const DefaultKey = "chats_v1"

// FileStore is a JSON-file-backed session store. The whole collection lives
// in a single file <root>/<key>.json.
type FileStore struct {
	root string
	key  string
	mu   sync.RWMutex
}

// NewFileStore creates a file-backed store rooted at the given directory.
func NewFileStore(root, key string) *FileStore {
	if key == "" {
		key = DefaultKey
	}
	return &FileStore{root: root, key: key}
}

// Path returns the file holding the collection.
func (s *FileStore) Path() string {
	return filepath.Join(s.root, s.key+".json")
}

// Load reads the collection. A missing file is an empty collection; an
// unreadable or malformed one is logged and also treated as empty.
func (s *FileStore) Load(_ context.Context) []types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read session store", "path", s.Path(), "error", err)
		}
		return []types.Session{}
	}

	sessions, err := decodeSessions(data)
	if err != nil {
		slog.Warn("discarding malformed session store", "path", s.Path(), "error", err)
		return []types.Session{}
	}
	return sessions
}

// Save marshals the collection and replaces the file atomically.
func (s *FileStore) Save(_ context.Context, sessions []types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeSessions(sessions)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp session store: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp session store: %w", err)
	}
	return nil
}

func encodeSessions(sessions []types.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []types.Session{}
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sessions: %w", err)
	}
	return data, nil
}

func decodeSessions(data []byte) ([]types.Session, error) {
	var sessions []types.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal sessions: %w", err)
	}
	if sessions == nil {
		sessions = []types.Session{}
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []types.Message{}
		}
	}
	return sessions, nil
}
