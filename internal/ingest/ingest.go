// Package ingest submits user documents to the backend for indexing and
// records the outcome in the session.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/backend"
)

// Reply texts used when the backend supplies none.
const (
	UploadedReply     = "Uploaded"
	UploadFailedReply = "Upload failed"
)

// ErrNoSources is returned by Validate for an empty selection.
var ErrNoSources = errors.New("no files selected")

// Outcome is the result of one ingestion attempt.
type Outcome struct {
	Text  string
	Files []string
	Err   error
}

// Ingestor uploads sources and appends one assistant message per attempt.
type Ingestor struct {
	backend  backend.Backend
	appender types.MessageAppender
}

// New creates an Ingestor delivering results through appender.
func New(b backend.Backend, appender types.MessageAppender) *Ingestor {
	return &Ingestor{backend: b, appender: appender}
}

// Validate rejects an empty selection and any source that fails its own
// check. No request is made.
func Validate(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Ingest reads every source, uploads them in one submission and appends the
// result to the session.
func (i *Ingestor) Ingest(ctx context.Context, sessionID types.SessionID, sources []Source) Outcome {
	out := i.upload(ctx, sources)
	if out.Err != nil {
		slog.Warn("upload failed", "session_id", string(sessionID), "files", strings.Join(out.Files, ","), "error", out.Err)
	}
	if _, ok := i.appender.AppendMessage(sessionID, types.NewMessage(types.RoleAssistant, out.Text)); !ok {
		slog.Debug("upload result dropped, session gone", "session_id", string(sessionID))
	}
	return out
}

func (i *Ingestor) upload(ctx context.Context, sources []Source) Outcome {
	out := Outcome{Files: make([]string, 0, len(sources))}
	for _, src := range sources {
		out.Files = append(out.Files, src.Name())
	}

	if len(sources) == 0 {
		out.Text, out.Err = UploadFailedReply, ErrNoSources
		return out
	}

	files := make([]backend.File, 0, len(sources))
	for _, src := range sources {
		f, err := src.Read(ctx)
		if err != nil {
			out.Text, out.Err = UploadFailedReply, fmt.Errorf("reading %s: %w", src.Name(), err)
			return out
		}
		files = append(files, f)
	}

	resp, err := i.backend.Upload(ctx, files)
	if err != nil {
		out.Text, out.Err = UploadFailedReply, err
		return out
	}

	out.Text = resp.Message
	if strings.TrimSpace(out.Text) == "" {
		out.Text = UploadedReply
	}
	return out
}
