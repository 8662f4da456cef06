// Package title derives a session title from the first user message.
package title

import (
	"context"
	"log/slog"
	"strings"

	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/backend"
)

// maxFallbackWords bounds the locally derived title.
const maxFallbackWords = 6

// Resolver asks the backend for a title and falls back to a local
// derivation when the backend fails or returns nothing.
type Resolver struct {
	backend backend.Backend
	renamer types.SessionRenamer
}

// New creates a Resolver that renames sessions through renamer.
func New(b backend.Backend, renamer types.SessionRenamer) *Resolver {
	return &Resolver{backend: b, renamer: renamer}
}

// Resolve computes a title for firstText and applies it to the session. It
// returns the title that was chosen. A session deleted meanwhile is left
// alone.
func (r *Resolver) Resolve(ctx context.Context, sessionID types.SessionID, firstText string) string {
	title := r.Title(ctx, firstText)
	if !r.renamer.RenameSession(sessionID, title) {
		slog.Debug("title not applied", "session_id", string(sessionID), "title", title)
	}
	return title
}

// Title returns the backend's title for text, or Fallback(text).
func (r *Resolver) Title(ctx context.Context, text string) string {
	title, err := r.backend.GenerateTitle(ctx, text)
	if err != nil {
		slog.Debug("generate title failed, using fallback", "error", err)
		return Fallback(text)
	}
	if strings.TrimSpace(title) == "" {
		return Fallback(text)
	}
	return title
}

// Fallback returns the text before the first '.', truncated to its first six
// whitespace-delimited words joined by single spaces.
func Fallback(text string) string {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		text = text[:i]
	}
	words := strings.Fields(text)
	if len(words) > maxFallbackWords {
		words = words[:maxFallbackWords]
	}
	return strings.Join(words, " ")
}
