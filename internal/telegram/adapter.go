package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/docchat/internal/controller"
	"github.com/user/docchat/internal/ingest"
	"github.com/user/docchat/internal/session"
	"github.com/user/docchat/internal/types"
)

const maxTelegramMessage = 4096

// Sender delivers outgoing messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter bridges a single Telegram user to the session controller.
type Adapter struct {
	bot         *tgbotapi.BotAPI
	sender      Sender
	ctl         *controller.Controller
	allowedUser int64

	mu            sync.Mutex
	chatID        int64
	pendingDelete types.SessionID
}

// New creates a Telegram adapter. Only messages from allowedUser are
// handled; zero accepts anyone.
func New(token string, ctl *controller.Controller, allowedUser int64) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := newAdapter(bot, ctl, allowedUser)
	a.bot = bot
	return a, nil
}

func newAdapter(sender Sender, ctl *controller.Controller, allowedUser int64) *Adapter {
	return &Adapter{
		sender:      sender,
		ctl:         ctl,
		allowedUser: allowedUser,
	}
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// OnChange pushes assistant messages for the active session back to the
// chat. Wire it as the session model's observer.
func (a *Adapter) OnChange(change types.Change) {
	if change.Kind != types.ChangeAppended || change.Message == nil || change.Message.Role != types.RoleAssistant {
		return
	}
	if change.SessionID != a.ctl.Model().ActiveID() {
		return
	}
	a.mu.Lock()
	chatID := a.chatID
	a.mu.Unlock()
	if chatID == 0 {
		return
	}
	a.sendResponse(chatID, change.Message.Text)
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || (a.allowedUser != 0 && msg.From.ID != a.allowedUser) {
		slog.Warn("telegram message from unknown user ignored", "user_id", userID(msg))
		return
	}

	chatID := msg.Chat.ID
	a.mu.Lock()
	a.chatID = chatID
	a.mu.Unlock()

	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	if _, err := a.ctl.Send(ctx, msg.Text); err != nil {
		slog.Error("send failed", "error", err)
		a.sendResponse(chatID, "Sorry, I could not send that: "+err.Error())
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	model := a.ctl.Model()

	switch msg.Command() {
	case "start", "help":
		a.sendResponse(chatID, helpText)

	case "new":
		a.ctl.NewChat()
		a.sendResponse(chatID, "Started a new chat.")

	case "list":
		a.sendResponse(chatID, formatList(model.Sessions(), model.ActiveID(), args))

	case "select":
		s, ok := a.sessionAt(args)
		if !ok {
			a.sendResponse(chatID, "Usage: /select <number from /list>")
			return
		}
		a.ctl.Select(s.ID)
		a.sendResponse(chatID, fmt.Sprintf("Switched to %q.", s.Title))

	case "rename":
		id := model.ActiveID()
		if id == "" {
			a.sendResponse(chatID, "No active chat.")
			return
		}
		if err := a.ctl.Rename(id, args); err != nil {
			a.sendResponse(chatID, "Usage: /rename <title>")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Renamed to %q.", strings.TrimSpace(args)))

	case "delete":
		s, ok := model.Active()
		if !ok {
			a.sendResponse(chatID, "No active chat.")
			return
		}
		a.mu.Lock()
		a.pendingDelete = s.ID
		a.mu.Unlock()
		a.sendResponse(chatID, fmt.Sprintf("Delete %q? Send /confirm to delete it.", s.Title))

	case "confirm":
		a.mu.Lock()
		id := a.pendingDelete
		a.pendingDelete = ""
		a.mu.Unlock()
		if id == "" {
			a.sendResponse(chatID, "Nothing to confirm.")
			return
		}
		if ok, err := a.ctl.Delete(id); !ok || err != nil {
			a.sendResponse(chatID, "Chat was already gone.")
			return
		}
		a.sendResponse(chatID, "Chat deleted.")

	case "history":
		s, ok := model.Active()
		if !ok || len(s.Messages) == 0 {
			a.sendResponse(chatID, "No messages yet.")
			return
		}
		a.sendResponse(chatID, formatHistory(s))

	case "attach":
		sources, err := ingest.ParseURLSources(strings.Fields(args))
		if err != nil {
			a.sendResponse(chatID, "Could not attach: "+err.Error())
			return
		}
		if len(sources) == 0 {
			a.sendResponse(chatID, "Usage: /attach <url>...")
			return
		}
		if _, err := a.ctl.Attach(ctx, sources); err != nil {
			a.sendResponse(chatID, "Could not attach: "+err.Error())
			return
		}
		a.sendResponse(chatID, "Uploading...")

	default:
		a.sendResponse(chatID, "Unknown command. "+helpText)
	}
}

const helpText = "Commands: /new, /list [search], /select <n>, /rename <title>, /delete, /confirm, /history, /attach <url>. Anything else is sent as a question."

func (a *Adapter) sessionAt(arg string) (types.Session, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return types.Session{}, false
	}
	sessions := a.ctl.Model().Sessions()
	if n < 1 || n > len(sessions) {
		return types.Session{}, false
	}
	return sessions[n-1], true
}

// formatList numbers sessions by their position in the full list so
// /select keeps working on a filtered view.
func formatList(sessions []types.Session, active types.SessionID, search string) string {
	if len(sessions) == 0 {
		return "No chats yet. Send a message or /new to start one."
	}
	var b strings.Builder
	for i, s := range sessions {
		if !session.TitleMatches(s, search) {
			continue
		}
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s%d. %s (%d messages)\n", marker, i+1, s.Title, len(s.Messages))
	}
	if b.Len() == 0 {
		return fmt.Sprintf("No chats match %q.", search)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(s types.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", s.Title)
	for _, m := range s.Messages {
		who := "You"
		if m.Role == types.RoleAssistant {
			who = "Bot"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.sender.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.sender.Send(msg); err != nil {
				slog.Error("send message error", "chat_id", chatID, "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := min(maxTelegramMessage, len(text))
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func userID(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return strconv.FormatInt(msg.From.ID, 10)
}
