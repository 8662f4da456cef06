package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/devserver"
	"github.com/user/docchat/internal/telegram"
	"github.com/user/docchat/internal/types"
)

const pidFile = "docchat.pid"

var devListen string

func init() {
	devserverCmd.Flags().StringVar(&devListen, "listen", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd, devserverCmd)
}

var serveCmd = &cobra.Command{
	Use:     "telegram",
	Aliases: []string{"serve"},
	Short:   "Run the Telegram bot front end",
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFile)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is not set (docchat config set telegram.token <token>)")
	}
	if cfg.Telegram.AllowedUserID == 0 {
		slog.Warn("telegram.allowed_user_id is 0, the bot will answer anyone")
	}

	// The adapter needs the controller and the model needs the adapter as
	// its observer, so the observer closes over a late-bound pointer.
	var adapter *telegram.Adapter
	a, err := openApp(cfg, func(c types.Change) {
		if adapter != nil {
			adapter.OnChange(c)
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()
	a.load(cmd)

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter, err = telegram.New(cfg.Telegram.Token, a.ctl, cfg.Telegram.AllowedUserID)
	if err != nil {
		return fmt.Errorf("create telegram adapter: %w", err)
	}
	a.ctl.Start(ctx)

	slog.Info("docchat bot started",
		"data_dir", cfg.DataDir,
		"backend_url", cfg.Backend.BaseURL,
		"storage_driver", cfg.Storage.Driver,
		"sessions", len(a.ctl.Model().Sessions()),
		"pid_file", pidPath,
	)
	adapter.Start(ctx)

	slog.Info("shutting down")
	return nil
}

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local document Q&A backend for development",
	Long: `Runs a small keyword-search backend that speaks the same HTTP API as the
production server: /upload, /ask, /chat and /generate_title.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		addr := cfg.DevServer.Listen
		if devListen != "" {
			addr = devListen
		}

		srv, err := devserver.NewServer(cfg.UploadDir())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("devserver started", "listen", addr, "upload_dir", cfg.UploadDir())
		return srv.ListenAndServe(ctx, addr)
	},
}
