// Package app wires configuration, the wasm runtime and the engine manager
// into one process-wide object.
package app

import (
	"context"
	"fmt"

	"github.com/woxQAQ/hanzi-ime/internal/config"
	"github.com/woxQAQ/hanzi-ime/internal/engine"
	"github.com/woxQAQ/hanzi-ime/internal/ipc"
	"github.com/woxQAQ/hanzi-ime/internal/wasm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	runtime   *wasm.Runtime
	manager   *engine.Manager
	messenger *ipc.Messenger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	runtime, err := wasm.NewRuntime(ctx, logger, cfg.Wasm.RuntimeConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	logger.Info("Engine host initialized",
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
		zap.String("wasm_cache_dir", cfg.Wasm.CacheDir),
		zap.String("engine_source", cfg.Engine.Source),
		zap.String("engine_name", cfg.Engine.Name),
	)

	hostFuncs := wasm.NewHostFunctions(logger)
	return &App{
		cfg:       cfg,
		logger:    logger,
		runtime:   runtime,
		manager:   engine.NewManager(cfg, runtime, hostFuncs, logger),
		messenger: ipc.NewMessenger(logger),
	}, nil
}

func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Messenger() *ipc.Messenger {
	return a.messenger
}

func (a *App) Manager() *engine.Manager {
	return a.manager
}

// OpenEngine loads the configured engine.
func (a *App) OpenEngine(ctx context.Context, onReady func()) (*ipc.Handle, error) {
	return a.manager.OpenConfigured(ctx, onReady)
}

// Translate exchanges one query with a loaded engine.
func (a *App) Translate(ctx context.Context, h *ipc.Handle, query string) (string, error) {
	return a.messenger.Exchange(ctx, h, query)
}

// Close gracefully shuts down the engine host.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down engine host")

	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to shutdown Wasm runtime", zap.Error(err))
		return err
	}

	a.logger.Info("Engine host shutdown complete")
	return nil
}

// NewLogger builds the process logger. Debug level uses the development
// encoder. A non-empty logFile replaces stderr as the output.
func NewLogger(level, logFile string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if logFile != "" {
		zc.OutputPaths = []string{logFile}
		zc.ErrorOutputPaths = []string{logFile}
	}
	return zc.Build()
}
