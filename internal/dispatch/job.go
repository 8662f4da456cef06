package dispatch

import (
	"context"
	"time"

	"github.com/user/docchat/internal/types"
)

// JobKind names the work a Job performs.
type JobKind string

const (
	JobQuery  JobKind = "query"
	JobUpload JobKind = "upload"
)

// Job is one unit of asynchronous work bound to a session.
type Job struct {
	ID        types.JobID
	SessionID types.SessionID
	Kind      JobKind
	CreatedAt time.Time
	Run       func(ctx context.Context) error
}

// NewJob creates a Job for the given session.
func NewJob(sessionID types.SessionID, kind JobKind, run func(ctx context.Context) error) *Job {
	return &Job{
		ID:        types.NewJobID(),
		SessionID: sessionID,
		Kind:      kind,
		CreatedAt: time.Now(),
		Run:       run,
	}
}
