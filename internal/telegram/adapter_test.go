package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/docchat/internal/controller"
	"github.com/user/docchat/internal/session"
	"github.com/user/docchat/internal/state"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/backend"
)

const ownerID = 42

type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.mu.Lock()
		f.texts = append(f.texts, m.Text)
		f.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeSender) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type stubBackend struct{}

func (stubBackend) GenerateTitle(context.Context, string) (string, error) {
	return "", errors.New("offline")
}

func (stubBackend) Ask(_ context.Context, q string) (*backend.AskResponse, error) {
	return &backend.AskResponse{Answer: "answer: " + q}, nil
}

func (stubBackend) Chat(context.Context, string) (*backend.ChatResponse, error) {
	return &backend.ChatResponse{}, nil
}

func (stubBackend) Upload(context.Context, []backend.File) (*backend.UploadResponse, error) {
	return &backend.UploadResponse{}, nil
}

func setup(t *testing.T) (*Adapter, *fakeSender) {
	t.Helper()
	var a *Adapter
	model := session.New(state.NewFileStore(t.TempDir(), ""), session.WithObserver(func(c types.Change) {
		if a != nil {
			a.OnChange(c)
		}
	}))
	ctl := controller.New(model, stubBackend{})
	ctl.Start(context.Background())
	t.Cleanup(ctl.Close)

	sender := &fakeSender{}
	a = newAdapter(sender, ctl, ownerID)
	return a, sender
}

func message(from int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: from},
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(text)
		if i := strings.IndexByte(text, ' '); i >= 0 {
			cmdLen = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return msg
}

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 || parts[0] != short {
		t.Fatalf("expected single part %q, got %v", short, parts)
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestIgnoresOtherUsers(t *testing.T) {
	a, sender := setup(t)
	a.handleMessage(context.Background(), message(7, "hello"))

	if len(sender.all()) != 0 {
		t.Errorf("expected no replies, got %v", sender.all())
	}
	if len(a.ctl.Model().Sessions()) != 0 {
		t.Error("expected no session for a stranger")
	}
}

func TestTextIsSentAndAnswerPushed(t *testing.T) {
	a, sender := setup(t)
	a.handleMessage(context.Background(), message(ownerID, "what is up"))

	if !a.ctl.Wait(2 * time.Second) {
		t.Fatal("timed out")
	}
	if sender.last() != "answer: what is up" {
		t.Errorf("expected pushed answer, got %v", sender.all())
	}
}

func TestSessionCommands(t *testing.T) {
	a, sender := setup(t)
	ctx := context.Background()

	a.handleMessage(ctx, message(ownerID, "/new"))
	a.handleMessage(ctx, message(ownerID, "/rename Budget"))
	a.handleMessage(ctx, message(ownerID, "/new"))
	a.handleMessage(ctx, message(ownerID, "/list"))

	list := sender.last()
	if !strings.Contains(list, "*1. New Chat") || !strings.Contains(list, " 2. Budget") {
		t.Errorf("unexpected list:\n%s", list)
	}

	a.handleMessage(ctx, message(ownerID, "/select 2"))
	if sender.last() != `Switched to "Budget".` {
		t.Errorf("unexpected select reply %q", sender.last())
	}
	active, _ := a.ctl.Model().Active()
	if active.Title != "Budget" {
		t.Errorf("expected Budget active, got %q", active.Title)
	}

	a.handleMessage(ctx, message(ownerID, "/select 9"))
	if !strings.HasPrefix(sender.last(), "Usage: /select") {
		t.Errorf("expected usage, got %q", sender.last())
	}
}

func TestDeleteNeedsConfirm(t *testing.T) {
	a, sender := setup(t)
	ctx := context.Background()

	a.handleMessage(ctx, message(ownerID, "/confirm"))
	if sender.last() != "Nothing to confirm." {
		t.Errorf("unexpected reply %q", sender.last())
	}

	a.handleMessage(ctx, message(ownerID, "/new"))
	a.handleMessage(ctx, message(ownerID, "/delete"))
	if len(a.ctl.Model().Sessions()) != 1 {
		t.Fatal("delete must wait for confirmation")
	}
	a.handleMessage(ctx, message(ownerID, "/confirm"))
	if sender.last() != "Chat deleted." {
		t.Errorf("unexpected reply %q", sender.last())
	}
	if len(a.ctl.Model().Sessions()) != 0 {
		t.Error("expected session deleted")
	}
}

func TestHistory(t *testing.T) {
	a, sender := setup(t)
	ctx := context.Background()

	a.handleMessage(ctx, message(ownerID, "/history"))
	if sender.last() != "No messages yet." {
		t.Errorf("unexpected reply %q", sender.last())
	}

	a.handleMessage(ctx, message(ownerID, "ping"))
	a.ctl.Wait(2 * time.Second)
	a.handleMessage(ctx, message(ownerID, "/history"))
	h := sender.last()
	if !strings.Contains(h, "You: ping") || !strings.Contains(h, "Bot: answer: ping") {
		t.Errorf("unexpected history:\n%s", h)
	}
}

func TestFormatListEmpty(t *testing.T) {
	if got := formatList(nil, "", ""); !strings.HasPrefix(got, "No chats yet") {
		t.Errorf("unexpected empty list %q", got)
	}
}

func TestAttachRejectsLocalPaths(t *testing.T) {
	a, sender := setup(t)
	a.handleMessage(context.Background(), message(ownerID, "/attach /etc/hostname"))

	if !strings.HasPrefix(sender.last(), "Could not attach: only http(s) URLs") {
		t.Errorf("expected local path rejected, got %v", sender.all())
	}
	if !a.ctl.Wait(time.Second) {
		t.Fatal("timed out")
	}
	if len(a.ctl.Model().Sessions()) != 0 {
		t.Error("rejected attach must not start a chat")
	}
}

func TestListSearch(t *testing.T) {
	a, sender := setup(t)
	ctx := context.Background()

	a.handleMessage(ctx, message(ownerID, "/new"))
	a.handleMessage(ctx, message(ownerID, "/rename Budget 2026"))
	a.handleMessage(ctx, message(ownerID, "/new"))
	a.handleMessage(ctx, message(ownerID, "/rename Travel plans"))

	a.handleMessage(ctx, message(ownerID, "/list budget"))
	list := sender.last()
	if !strings.Contains(list, "2. Budget 2026") || strings.Contains(list, "Travel") {
		t.Errorf("unexpected filtered list:\n%s", list)
	}

	a.handleMessage(ctx, message(ownerID, "/list zebra"))
	if sender.last() != `No chats match "zebra".` {
		t.Errorf("unexpected reply %q", sender.last())
	}
}
