// Package state provides durable storage for the session collection.
package state

import "github.com/user/docchat/internal/types"

// Compile-time interface compliance checks.
var _ types.SessionStore = (*FileStore)(nil)
var _ types.SessionStore = (*SQLiteStore)(nil)
