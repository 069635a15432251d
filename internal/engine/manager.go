package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/woxQAQ/hanzi-ime/internal/config"
	"github.com/woxQAQ/hanzi-ime/internal/ipc"
	"github.com/woxQAQ/hanzi-ime/internal/wasm"
	"go.uber.org/zap"
)

// Manager manages engine bundle lifecycle and opens ready handles.
type Manager struct {
	cfg       *config.Config
	runtime   *wasm.Runtime
	hostFuncs *wasm.HostFunctionsImpl
	loader    *Loader
	registry  *Registry
	logger    *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new engine manager.
func NewManager(
	cfg *config.Config,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:       cfg,
		runtime:   runtime,
		hostFuncs: hostFuncs,
		loader:    NewLoader(runtime, logger),
		registry:  NewRegistry(logger),
		logger:    logger.With(zap.String("component", "engine-manager")),
	}
}

// LoadAll discovers and registers all bundles under the configured paths.
// Finding none is not an error.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("engine bundles already loaded")
	}

	m.logger.Info("Loading engine bundles",
		zap.Strings("paths", m.cfg.EnginePaths),
	)

	bundles, err := m.loader.DiscoverBundles(ctx, m.cfg.EnginePaths)
	if err != nil {
		var none *NoBundlesFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No engine bundles found in configured paths",
				zap.Strings("paths", m.cfg.EnginePaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, bundle := range bundles {
		if err := m.registry.Register(bundle); err != nil {
			m.logger.Error("Failed to register engine bundle",
				zap.String("name", bundle.Name()),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Engine bundles loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

// Get retrieves a bundle by name.
func (m *Manager) Get(name string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundle, ok := m.registry.Get(name)
	if !ok {
		return nil, &BundleNotFoundError{BundleName: name}
	}

	return bundle, nil
}

// FindForDialect returns the first registered bundle for a dialect.
func (m *Manager) FindForDialect(dialect string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundles := m.registry.LookupByDialect(dialect)
	if len(bundles) == 0 {
		return nil, &DialectNotSupportedError{Dialect: dialect}
	}

	return bundles[0], nil
}

// Open loads a new engine instance from the named bundle.
func (m *Manager) Open(ctx context.Context, name string, onReady func()) (*ipc.Handle, error) {
	bundle, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	loader := ipc.NewLoader(m.runtime, m.hostFuncs, bundle.Manifest.ABI, m.logger)
	return loader.Load(ctx, bundle.Source(), onReady)
}

// OpenConfigured loads the engine selected by the engine section: the
// named bundle when engine.name is set, otherwise engine.source.
func (m *Manager) OpenConfigured(ctx context.Context, onReady func()) (*ipc.Handle, error) {
	ec := m.cfg.Engine

	if ec.Name != "" {
		if !m.IsLoaded() {
			if err := m.LoadAll(ctx); err != nil {
				return nil, err
			}
		}
		return m.Open(ctx, ec.Name, onReady)
	}

	source, err := ResolveSource(ec.Source, SourceOptions{
		FetchMode:      wasm.FetchMode(ec.FetchMode),
		FetchTimeout:   ec.FetchTimeout,
		MaxModuleBytes: ec.MaxModuleBytes,
		ABI:            ec.ABI,
		Logger:         m.logger,
	})
	if err != nil {
		return nil, err
	}

	loader := ipc.NewLoader(m.runtime, m.hostFuncs, ec.ABI, m.logger)
	return loader.Load(ctx, source, onReady)
}

// Shutdown closes the runtime and every instance it still tracks.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down engine manager")

	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Engine manager shutdown complete")
	return nil
}

// Registry returns the bundle registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether bundles have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
