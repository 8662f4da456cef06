package session

import (
	"strings"

	"github.com/user/docchat/internal/types"
)

// TitleMatches reports whether the session title contains term, ignoring
// case. A blank term matches every session.
func TitleMatches(s types.Session, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Title), strings.ToLower(term))
}
