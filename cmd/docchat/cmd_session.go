package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/controller"
	"github.com/user/docchat/internal/export"
	"github.com/user/docchat/internal/session"
)

var (
	listSearch   string
	deleteYes    bool
	exportFormat string
	exportOutput string
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionRenameCmd, sessionDeleteCmd, sessionExportCmd)

	sessionListCmd.Flags().StringVarP(&listSearch, "search", "s", "", "only show chats whose title contains this text")
	sessionDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "delete without asking")
	sessionExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "export format (json, yaml, md)")
	sessionExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Manage chat sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all chats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(loadConfig(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		a.load(cmd)

		list := a.ctl.Model().Sessions()
		if len(list) == 0 {
			fmt.Println("No chats found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tTITLE\tMESSAGES\tCREATED")
		for i, s := range list {
			if !session.TitleMatches(s, listSearch) {
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
				i+1,
				s.ID,
				s.Title,
				len(s.Messages),
				s.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <n|id>",
	Short: "Print a chat transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(loadConfig(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		a.load(cmd)

		s, err := sessionByRef(a.ctl.Model().Sessions(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderHistory(s))
		return nil
	},
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <n|id> <title>",
	Short: "Rename a chat",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(loadConfig(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		a.load(cmd)

		s, err := sessionByRef(a.ctl.Model().Sessions(), args[0])
		if err != nil {
			return err
		}
		title := strings.Join(args[1:], " ")
		if err := a.ctl.Rename(s.ID, title); err != nil {
			return err
		}
		fmt.Printf("Renamed %q to %q.\n", s.Title, strings.TrimSpace(title))
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <n|id>",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []controller.Option
		if !deleteYes {
			scanner := bufio.NewScanner(os.Stdin)
			opts = append(opts, controller.WithConfirmer(controller.ConfirmFunc(func(msg string) bool {
				return strings.EqualFold(prompt(scanner, msg, "n"), "y")
			})))
		}
		a, err := openApp(loadConfig(), nil, opts...)
		if err != nil {
			return err
		}
		defer a.Close()
		a.load(cmd)

		s, err := sessionByRef(a.ctl.Model().Sessions(), args[0])
		if err != nil {
			return err
		}
		if _, err := a.ctl.Delete(s.ID); err != nil {
			if errors.Is(err, controller.ErrNotConfirmed) {
				fmt.Println("Kept.")
				return nil
			}
			return err
		}
		fmt.Printf("Chat %q deleted.\n", s.Title)
		return nil
	},
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <n|id>",
	Short: "Export a chat as json, yaml or markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		a, err := openApp(loadConfig(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		a.load(cmd)

		s, err := sessionByRef(a.ctl.Model().Sessions(), args[0])
		if err != nil {
			return err
		}

		if exportOutput == "" {
			return exporter.Export(s, os.Stdout)
		}
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOutput, err)
		}
		defer f.Close()
		if err := exporter.Export(s, f); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %q to %s\n", s.Title, exportOutput)
		return nil
	},
}
