package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
	"go.uber.org/zap"
)

func newTestRuntime(t *testing.T) *wasm.Runtime {
	t.Helper()
	ctx := context.Background()

	runtime, err := wasm.NewRuntime(ctx, zap.NewNop(), wasm.DefaultRuntimeConfig())
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { _ = runtime.Close(ctx) })
	return runtime
}

func TestLoader_LoadBundle_Valid(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t)
	dir := writeBundle(t, t.TempDir(), "pinyin", validManifest, echoModule())

	loader := NewLoader(runtime, zap.NewNop())
	bundle, err := loader.LoadBundle(ctx, dir)
	if err != nil {
		t.Fatalf("LoadBundle() failed: %v", err)
	}

	if bundle.Name() != "pinyin" {
		t.Errorf("expected name 'pinyin', got '%s'", bundle.Name())
	}
	if bundle.Version() != "0.1.0" {
		t.Errorf("expected version '0.1.0', got '%s'", bundle.Version())
	}
	if bundle.Dialect() != DialectSimplifiedChinese {
		t.Errorf("expected dialect 'zh-Hans', got '%s'", bundle.Dialect())
	}
	if bundle.Compiled == nil || bundle.Compiled.SizeBytes != int64(len(echoModule())) {
		t.Errorf("unexpected compiled module: %+v", bundle.Compiled)
	}
	if bundle.Source().Name() != bundle.Compiled.Name {
		t.Errorf("Source() name %s does not match compiled module %s", bundle.Source().Name(), bundle.Compiled.Name)
	}
}

func TestLoader_LoadBundle_ManifestNotFound(t *testing.T) {
	loader := NewLoader(newTestRuntime(t), zap.NewNop())

	_, err := loader.LoadBundle(context.Background(), filepath.Join(t.TempDir(), "nonexistent"))

	var notFound *ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ManifestNotFoundError, got %T", err)
	}
}

func TestLoader_LoadBundle_InvalidWasm(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "garbage", validManifest, []byte("not wasm"))
	loader := NewLoader(newTestRuntime(t), zap.NewNop())

	_, err := loader.LoadBundle(context.Background(), dir)

	var loadErr *BundleLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected BundleLoadError, got %T", err)
	}
	var compileErr *wasm.CompilationError
	if !errors.As(err, &compileErr) {
		t.Errorf("expected wrapped CompilationError, got %v", err)
	}
}

func TestLoader_DiscoverBundles(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "pinyin", validManifest, echoModule())
	writeBundle(t, root, "broken", "name: broken\n", nil)

	loader := NewLoader(newTestRuntime(t), zap.NewNop())
	bundles, err := loader.DiscoverBundles(context.Background(), []string{
		root,
		filepath.Join(root, "does-not-exist"),
	})
	if err != nil {
		t.Fatalf("DiscoverBundles() failed: %v", err)
	}

	if len(bundles) != 1 || bundles[0].Name() != "pinyin" {
		t.Errorf("expected only the valid bundle, got %d", len(bundles))
	}
}

func TestLoader_DiscoverBundles_NoneFound(t *testing.T) {
	loader := NewLoader(newTestRuntime(t), zap.NewNop())

	_, err := loader.DiscoverBundles(context.Background(), []string{t.TempDir()})

	var none *NoBundlesFoundError
	if !errors.As(err, &none) {
		t.Errorf("expected NoBundlesFoundError, got %T", err)
	}
}
