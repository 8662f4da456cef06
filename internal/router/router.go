// Package router resolves a user query through the two-tier fallback: the
// document-grounded /ask endpoint first, then the generic /chat endpoint.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/backend"
)

// Reply texts produced by the router itself rather than the backend.
const (
	OfflineReply    = "Backend offline"
	BothFailedReply = "Both /ask and /chat failed. Is backend running?"
)

const (
	tierNone = 0
	tierAsk  = 1
	tierChat = 2
)

// State is a step of the resolution machine.
type State int

const (
	Start State = iota
	Tier1Pending
	Tier1Success
	Tier1Empty
	Tier1Error
	Tier2Pending
	Tier2Success
	Tier2Error
	Done
)

var stateNames = [...]string{
	Start:        "start",
	Tier1Pending: "tier1_pending",
	Tier1Success: "tier1_success",
	Tier1Empty:   "tier1_empty",
	Tier1Error:   "tier1_error",
	Tier2Pending: "tier2_pending",
	Tier2Success: "tier2_success",
	Tier2Error:   "tier2_error",
	Done:         "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Outcome is the result of resolving one query.
type Outcome struct {
	Text string
	// Tier is the endpoint tier whose reply produced Text: 1 for /ask, 2 for
	// /chat, 0 when both failed.
	Tier  int
	Trace []State
}

// Router runs the fallback protocol against a Backend.
type Router struct {
	backend  backend.Backend
	appender types.MessageAppender
}

// New creates a Router that delivers answers through appender.
func New(b backend.Backend, appender types.MessageAppender) *Router {
	return &Router{backend: b, appender: appender}
}

// Resolve answers query and appends exactly one assistant message to the
// session. If the session was deleted meanwhile the message is dropped.
func (r *Router) Resolve(ctx context.Context, sessionID types.SessionID, query string) Outcome {
	out := r.Answer(ctx, query)
	if _, ok := r.appender.AppendMessage(sessionID, types.NewMessage(types.RoleAssistant, out.Text)); !ok {
		slog.Debug("answer dropped, session gone", "session_id", string(sessionID), "tier", out.Tier)
	}
	return out
}

// Answer runs the state machine for query without touching any session.
// Tier 2 is only contacted after Tier 1 has resolved.
func (r *Router) Answer(ctx context.Context, query string) Outcome {
	trace := []State{Start, Tier1Pending}

	resp, err := r.backend.Ask(ctx, query)
	switch {
	case err != nil:
		slog.Debug("ask failed", "error", err)
		trace = append(trace, Tier1Error)
	case resp == nil:
		trace = append(trace, Tier1Empty)
	case strings.TrimSpace(resp.Answer) != "":
		trace = append(trace, Tier1Success, Done)
		return Outcome{Text: resp.Answer, Tier: tierAsk, Trace: trace}
	case resp.Error != "":
		slog.Debug("ask reported error", "error", resp.Error)
		trace = append(trace, Tier1Error)
	default:
		trace = append(trace, Tier1Empty)
	}

	trace = append(trace, Tier2Pending)
	chat, err := r.backend.Chat(ctx, query)
	if err != nil {
		slog.Warn("ask and chat both failed", "error", err)
		trace = append(trace, Tier2Error, Done)
		return Outcome{Text: BothFailedReply, Tier: tierNone, Trace: trace}
	}

	trace = append(trace, Tier2Success, Done)
	var text string
	if chat != nil {
		text = chat.Reply
	}
	if strings.TrimSpace(text) == "" {
		text = OfflineReply
	}
	return Outcome{Text: text, Tier: tierChat, Trace: trace}
}
