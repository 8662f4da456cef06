package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/ingest"
	"github.com/user/docchat/internal/types"
)

var newChat bool

func init() {
	askCmd.Flags().BoolVar(&newChat, "new", false, "ask in a new chat instead of the active one")
	attachCmd.Flags().BoolVar(&newChat, "new", false, "attach into a new chat instead of the active one")
	rootCmd.AddCommand(askCmd, attachCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		a, err := openApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		a.load(cmd)
		a.ctl.Start(cmd.Context())

		if newChat {
			a.ctl.NewChat()
		}
		id, err := a.ctl.Send(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if !a.ctl.Wait(3 * cfg.Timeout()) {
			return fmt.Errorf("timed out waiting for an answer")
		}
		printLastAssistant(a, id)
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <path|url>...",
	Short: "Upload documents into the active chat",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		a, err := openApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		a.load(cmd)
		a.ctl.Start(cmd.Context())

		if newChat {
			a.ctl.NewChat()
		}
		id, err := a.ctl.Attach(cmd.Context(), ingest.ParseSources(args))
		if err != nil {
			return err
		}
		if !a.ctl.Wait(2 * cfg.Timeout()) {
			return fmt.Errorf("timed out waiting for the upload")
		}
		printLastAssistant(a, id)
		return nil
	},
}

func printLastAssistant(a *app, id types.SessionID) {
	s, ok := a.ctl.Model().Session(id)
	if !ok {
		return
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == types.RoleAssistant {
			fmt.Println(s.Messages[i].Text)
			return
		}
	}
}
