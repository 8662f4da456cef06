package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/config"
	"github.com/user/docchat/internal/controller"
	"github.com/user/docchat/internal/session"
	"github.com/user/docchat/internal/state"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/backend"
	"github.com/user/docchat/pkg/backend/httpclient"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "docchat",
	Short:         "Chat with your documents",
	Long:          "docchat keeps named chat sessions against a document Q&A backend.\nQuestions go to /ask first and fall back to /chat.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads .env (if present) and the config file, then configures
// logging. Failure is fatal.
func loadConfig() *config.Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg *config.Config) {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// app bundles the pieces every session-facing command needs.
type app struct {
	cfg   *config.Config
	ctl   *controller.Controller
	store io.Closer
}

// openApp loads sessions from the configured store and builds a controller
// over them. observer may be nil.
func openApp(cfg *config.Config, observer func(types.Change), opts ...controller.Option) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, closer, err := state.Open(cfg.Storage.Driver, cfg.DataDir, cfg.Storage.Key)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var modelOpts []session.Option
	if observer != nil {
		modelOpts = append(modelOpts, session.WithObserver(observer))
	}
	model := session.New(store, modelOpts...)

	client := httpclient.New(&backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Timeout(),
	})

	opts = append([]controller.Option{controller.WithMaxConcurrent(int64(cfg.MaxConcurrent))}, opts...)
	ctl := controller.New(model, client, opts...)

	slog.Debug("docchat opened",
		"data_dir", cfg.DataDir,
		"storage_driver", cfg.Storage.Driver,
		"backend_url", cfg.Backend.BaseURL,
		"max_concurrent", cfg.MaxConcurrent,
	)
	return &app{cfg: cfg, ctl: ctl, store: closer}, nil
}

// load restores persisted sessions. Kept separate from openApp so callers
// can wire observers that reference the controller first.
func (a *app) load(cmd *cobra.Command) {
	a.ctl.Model().Load(cmd.Context())
}

func (a *app) Close() {
	a.ctl.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("close store", "error", err)
	}
}
