// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type SessionID string
type JobID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewJobID() JobID {
	return JobID(uuid.New().String())
}
