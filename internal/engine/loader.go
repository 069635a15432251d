package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
	"go.uber.org/zap"
)

// Loader handles loading engine bundles from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new bundle loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "engine-loader")),
	}
}

// LoadBundle parses the manifest in dir and compiles its module.
func (l *Loader) LoadBundle(ctx context.Context, dir string) (*Bundle, error) {
	l.logger.Debug("Loading engine bundle", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading engine bundle",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("dialect", manifest.Dialect),
	)

	// Compile Wasm module (uses internal caching)
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.WasmPath())
	if err != nil {
		return nil, &BundleLoadError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}

	bundle := &Bundle{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Engine bundle loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return bundle, nil
}

// DiscoverBundles scans each path for bundle subdirectories. Broken bundles
// are logged and skipped.
func (l *Loader) DiscoverBundles(ctx context.Context, paths []string) ([]*Bundle, error) {
	var bundles []*Bundle
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning engine directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Engine path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			bundleDir := filepath.Join(basePath, entry.Name())

			bundle, err := l.LoadBundle(ctx, bundleDir)
			if err != nil {
				l.logger.Error("Failed to load engine bundle",
					zap.String("dir", bundleDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			bundles = append(bundles, bundle)
		}
	}

	if len(bundles) > 0 && len(errs) > 0 {
		l.logger.Warn("Some engine bundles failed to load",
			zap.Int("loaded", len(bundles)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(bundles) == 0 {
		return nil, &NoBundlesFoundError{Paths: paths}
	}

	return bundles, nil
}
