// Package controller translates user intents into session model mutations
// and asynchronous backend work.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/docchat/internal/dispatch"
	"github.com/user/docchat/internal/ingest"
	"github.com/user/docchat/internal/router"
	"github.com/user/docchat/internal/session"
	"github.com/user/docchat/internal/title"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/backend"
)

var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrEmptyTitle     = errors.New("title is empty")
	ErrNoFiles        = errors.New("no files selected")
	ErrNotConfirmed   = errors.New("deletion not confirmed")
	ErrUnknownSession = errors.New("unknown session")
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Controller dispatches intents. It owns no session state of its own.
type Controller struct {
	model    *session.Model
	router   *router.Router
	titles   *title.Resolver
	ingestor *ingest.Ingestor
	confirm  Confirmer
	Queue    *dispatch.Queue

	titling atomic.Int64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional behavior on a Controller.
type Option func(*Controller)

// WithConfirmer sets the confirmation prompt used by Delete. Without one,
// deletions proceed unasked.
func WithConfirmer(c Confirmer) Option {
	return func(ctl *Controller) { ctl.confirm = c }
}

// WithMaxConcurrent bounds how many sessions may have backend work in
// flight at once.
func WithMaxConcurrent(n int64) Option {
	return func(ctl *Controller) { ctl.Queue = dispatch.NewQueue(n) }
}

// New creates a Controller over model that talks to b.
func New(model *session.Model, b backend.Backend, opts ...Option) *Controller {
	c := &Controller{
		model:    model,
		router:   router.New(b, model),
		titles:   title.New(b, model),
		ingestor: ingest.New(b, model),
		Queue:    dispatch.NewQueue(2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start initialises the controller's context and starts the dispatch queue.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.Queue.Start(c.ctx)
}

// Close cancels outstanding work, stops the queue and waits for background
// goroutines to return.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.Queue.Stop()
	c.wg.Wait()
}

// Model returns the session model the controller mutates.
func (c *Controller) Model() *session.Model {
	return c.model
}

// Wait blocks until no queries, uploads or title resolutions are in flight,
// or the timeout expires. Returns true if quiescent.
func (c *Controller) Wait(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if c.Queue.Pending() == 0 && c.titling.Load() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// NewChat creates a session and makes it active.
func (c *Controller) NewChat() types.Session {
	return c.model.CreateSession()
}

// Select makes id the active session.
func (c *Controller) Select(id types.SessionID) error {
	if !c.model.SetActive(id) {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return nil
}

// Rename sets a session's title. Blank titles are rejected.
func (c *Controller) Rename(id types.SessionID, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if !c.model.RenameSession(id, title) {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return nil
}

// Delete removes a session after confirmation.
func (c *Controller) Delete(id types.SessionID) (bool, error) {
	s, ok := c.model.Session(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if c.confirm != nil && !c.confirm.Confirm(fmt.Sprintf("Delete chat %q?", s.Title)) {
		return false, ErrNotConfirmed
	}
	return c.model.DeleteSession(id), nil
}

// Send appends text as a user message to the active session (creating one
// if none is active) and queues the query for resolution. The first user
// message of a session also starts title resolution.
func (c *Controller) Send(ctx context.Context, text string) (types.SessionID, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyQuery
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := c.ensureActive()
	userCount, ok := c.model.AppendMessage(id, types.NewMessage(types.RoleUser, text))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	if userCount == 1 {
		c.resolveTitle(id, text)
	}

	job := dispatch.NewJob(id, dispatch.JobQuery, func(ctx context.Context) error {
		out := c.router.Resolve(ctx, id, text)
		slog.Debug("query resolved", "session_id", string(id), "tier", out.Tier)
		return nil
	})
	if err := c.Queue.Enqueue(job); err != nil {
		c.abandon(id, router.BothFailedReply, err)
		return id, fmt.Errorf("enqueue query: %w", err)
	}
	return id, nil
}

// Attach queues sources for upload into the active session, creating one if
// none is active.
func (c *Controller) Attach(ctx context.Context, sources []ingest.Source) (types.SessionID, error) {
	if len(sources) == 0 {
		return "", ErrNoFiles
	}
	if err := ingest.Validate(sources); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := c.ensureActive()
	job := dispatch.NewJob(id, dispatch.JobUpload, func(ctx context.Context) error {
		out := c.ingestor.Ingest(ctx, id, sources)
		slog.Debug("upload resolved", "session_id", string(id), "files", len(out.Files))
		return nil
	})
	if err := c.Queue.Enqueue(job); err != nil {
		c.abandon(id, ingest.UploadFailedReply, err)
		return id, fmt.Errorf("enqueue upload: %w", err)
	}
	return id, nil
}

// abandon closes out work that could not be queued with its terminal
// assistant message, so every attempt still gets exactly one reply.
func (c *Controller) abandon(id types.SessionID, reply string, err error) {
	slog.Warn("work not queued", "session_id", string(id), "error", err)
	c.model.AppendMessage(id, types.NewMessage(types.RoleAssistant, reply))
}

func (c *Controller) ensureActive() types.SessionID {
	if id := c.model.ActiveID(); id != "" {
		return id
	}
	return c.model.CreateSession().ID
}

func (c *Controller) resolveTitle(id types.SessionID, text string) {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	c.titling.Add(1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.titling.Add(-1)
		chosen := c.titles.Resolve(ctx, id, text)
		slog.Debug("title resolved", "session_id", string(id), "title", chosen)
	}()
}
