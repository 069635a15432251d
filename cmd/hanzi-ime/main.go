package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/woxQAQ/hanzi-ime/internal/app"
	"github.com/woxQAQ/hanzi-ime/internal/config"
	"github.com/woxQAQ/hanzi-ime/internal/server"
	"github.com/woxQAQ/hanzi-ime/internal/tui"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

var CmdRoot = &cobra.Command{
	Use:     "hanzi-ime",
	Short:   "Host for WebAssembly Chinese input method engines",
	Long:    "Loads an IME engine compiled to WebAssembly and talks to it through its\nshared query and reply buffers.",
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
}

var CmdChat = &cobra.Command{
	Use:   "chat",
	Short: "Open the terminal chat simulator",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var CmdTranslate = &cobra.Command{
	Use:   "translate QUERY...",
	Short: "Send queries to the engine and print each reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranslate,
}

var CmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat simulator over WebSocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	CmdRoot.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	CmdRoot.AddCommand(CmdChat, CmdTranslate, CmdServe)
}

func main() {
	if err := CmdRoot.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the engine host. quiet sends
// logs nowhere unless a log file is configured.
func setup(ctx context.Context, quiet bool) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zap.NewNop()
	if !quiet || cfg.LogFile != "" {
		if logger, err = app.NewLogger(cfg.LogLevel, cfg.LogFile); err != nil {
			return nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Starting hanzi-ime",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// The terminal belongs to the chat window.
	a, logger, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close(ctx)

	source := a.Config().Engine.Source
	if name := a.Config().Engine.Name; name != "" {
		source = name
	}

	m := tui.New(ctx, source, a.OpenEngine, a.Messenger(), logger)
	return tui.Run(m, tea.WithAltScreen())
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, logger, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close(ctx)

	h, err := a.OpenEngine(ctx, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, query := range args {
		reply, err := a.Translate(ctx, h, query)
		if err != nil {
			return fmt.Errorf("query %q: %w", query, err)
		}
		fmt.Fprintf(out, "%s\n%s\n", query, reply)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	bootstrap := context.Background()

	a, logger, err := setup(bootstrap, false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close(bootstrap)

	ctx, cancel := signalContext(logger)
	defer cancel()

	h, err := a.OpenEngine(ctx, func() {
		logger.Info("Engine ready")
	})
	if err != nil {
		return err
	}

	srv := server.New(h, a.Messenger(), a.Config().Server, logger)
	return srv.ListenAndServe(ctx)
}
