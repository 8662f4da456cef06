package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/controller"
	"github.com/user/docchat/internal/ingest"
	"github.com/user/docchat/internal/session"
	"github.com/user/docchat/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat (default command)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	r := newREPL(os.Stdin, os.Stdout)
	a, err := openApp(cfg, r.onChange, controller.WithConfirmer(controller.ConfirmFunc(r.confirm)))
	if err != nil {
		return err
	}
	defer a.Close()
	a.load(cmd)

	r.ctl = a.ctl
	a.ctl.Start(cmd.Context())

	r.run(cmd.Context())

	// Give in-flight answers a moment to land before exiting.
	if !a.ctl.Wait(cfg.Timeout()) {
		r.println(dimStyle.Render("Some requests were still pending at exit."))
	}
	return nil
}

const replHelp = `Commands:
  /new              start a new chat
  /list             list chats
  /select <n>       switch to chat n
  /rename <title>   rename the active chat
  /delete [n]       delete the active chat (or chat n)
  /attach <path|url>...  upload documents into the active chat
  /history          show the active chat
  /quit             exit
Anything else is sent as a question.`

// repl is the line-oriented chat front end. Answers arrive asynchronously
// through onChange.
type repl struct {
	in  *bufio.Scanner
	out io.Writer
	ctl *controller.Controller

	mu sync.Mutex
}

func newREPL(in io.Reader, out io.Writer) *repl {
	return &repl{in: bufio.NewScanner(in), out: out}
}

func (r *repl) run(ctx context.Context) {
	r.println(titleStyle.Render("docchat") + dimStyle.Render("  /help for commands"))
	if s, ok := r.ctl.Model().Active(); ok {
		r.println(dimStyle.Render("Active chat: " + s.Title))
	}

	for {
		r.print(userStyle.Render("> "))
		if !r.in.Scan() {
			return
		}
		if quit := r.handleLine(ctx, r.in.Text()); quit {
			return
		}
	}
}

// handleLine executes one line of input. It returns true when the user asked
// to quit.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := r.ctl.Send(ctx, line); err != nil {
			r.printErr(err)
		}
		return false
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	model := r.ctl.Model()

	switch name {
	case "quit", "exit", "q":
		return true

	case "help", "h":
		r.println(replHelp)

	case "new":
		s := r.ctl.NewChat()
		r.println(dimStyle.Render("Started " + s.Title + "."))

	case "list", "ls":
		r.println(renderList(model.Sessions(), model.ActiveID(), arg))

	case "select":
		s, err := sessionByRef(model.Sessions(), arg)
		if err != nil {
			r.printErr(err)
			return false
		}
		if err := r.ctl.Select(s.ID); err != nil {
			r.printErr(err)
			return false
		}
		r.println(dimStyle.Render("Switched to " + s.Title + "."))

	case "rename":
		id := model.ActiveID()
		if id == "" {
			r.printErr(errors.New("no active chat"))
			return false
		}
		if err := r.ctl.Rename(id, arg); err != nil {
			r.printErr(err)
			return false
		}
		r.println(dimStyle.Render("Renamed."))

	case "delete", "rm":
		var target types.Session
		if arg == "" {
			s, ok := model.Active()
			if !ok {
				r.printErr(errors.New("no active chat"))
				return false
			}
			target = s
		} else {
			s, err := sessionByRef(model.Sessions(), arg)
			if err != nil {
				r.printErr(err)
				return false
			}
			target = s
		}
		deleted, err := r.ctl.Delete(target.ID)
		switch {
		case errors.Is(err, controller.ErrNotConfirmed):
			r.println(dimStyle.Render("Kept."))
		case err != nil:
			r.printErr(err)
		case deleted:
			r.println(dimStyle.Render("Deleted " + target.Title + "."))
		}

	case "attach":
		sources := ingest.ParseSources(strings.Fields(arg))
		if _, err := r.ctl.Attach(ctx, sources); err != nil {
			r.printErr(err)
			return false
		}
		r.println(dimStyle.Render(fmt.Sprintf("Uploading %d file(s)...", len(sources))))

	case "history":
		s, ok := model.Active()
		if !ok {
			r.printErr(errors.New("no active chat"))
			return false
		}
		r.println(renderHistory(s))

	default:
		r.printErr(fmt.Errorf("unknown command /%s (try /help)", name))
	}
	return false
}

// onChange renders assistant messages as they are appended. Answers for a
// chat other than the active one are labelled with its title.
func (r *repl) onChange(c types.Change) {
	if c.Kind != types.ChangeAppended || c.Message == nil || c.Message.Role != types.RoleAssistant {
		return
	}
	prefix := ""
	if r.ctl != nil && c.SessionID != r.ctl.Model().ActiveID() {
		if s, ok := r.ctl.Model().Session(c.SessionID); ok {
			prefix = dimStyle.Render("["+s.Title+"] ")
		}
	}
	r.println("\n" + prefix + assistantStyle.Render("assistant: ") + c.Message.Text)
}

// confirm asks a yes/no question on the REPL's own input.
func (r *repl) confirm(prompt string) bool {
	r.print(prompt + " [y/N]: ")
	if !r.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(r.in.Text()))
	return answer == "y" || answer == "yes"
}

func (r *repl) print(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, s)
}

func (r *repl) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

func (r *repl) printErr(err error) {
	r.println(errorStyle.Render("error: " + err.Error()))
}

// sessionByRef resolves a 1-based list position or a session id.
func sessionByRef(sessions []types.Session, ref string) (types.Session, error) {
	if ref == "" {
		return types.Session{}, errors.New("missing chat number")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(sessions) {
			return types.Session{}, fmt.Errorf("no chat #%d (have %d)", n, len(sessions))
		}
		return sessions[n-1], nil
	}
	for _, s := range sessions {
		if string(s.ID) == ref {
			return s, nil
		}
	}
	return types.Session{}, fmt.Errorf("%w: %s", controller.ErrUnknownSession, ref)
}

// renderList keeps each chat's position in the full list so /select works
// on filtered output.
func renderList(sessions []types.Session, active types.SessionID, search string) string {
	if len(sessions) == 0 {
		return dimStyle.Render("No chats yet.")
	}
	var b strings.Builder
	for i, s := range sessions {
		if !session.TitleMatches(s, search) {
			continue
		}
		line := fmt.Sprintf("%2d. %s  %s", i+1, s.Title, dimStyle.Render(fmt.Sprintf("(%d messages)", len(s.Messages))))
		if s.ID == active {
			line = activeStyle.Render(fmt.Sprintf("%2d. %s", i+1, s.Title)) + "  " + dimStyle.Render(fmt.Sprintf("(%d messages)", len(s.Messages)))
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return dimStyle.Render(fmt.Sprintf("No chats match %q.", search))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistory(s types.Session) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Title))
	b.WriteByte('\n')
	if len(s.Messages) == 0 {
		b.WriteString(dimStyle.Render("No messages yet."))
		return b.String()
	}
	for _, m := range s.Messages {
		who := userStyle.Render("you: ")
		if m.Role == types.RoleAssistant {
			who = assistantStyle.Render("assistant: ")
		}
		fmt.Fprintf(&b, "%s %s%s\n", dimStyle.Render(m.Timestamp.Format(time.Kitchen)), who, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
