package engine

import (
	"time"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
)

// Bundle is an engine directory with its manifest and compiled module.
type Bundle struct {
	// Manifest is the parsed bundle metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the bundle was loaded
	LoadedAt time.Time
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.Manifest.Name
}

// Dialect returns the script the engine translates to.
func (b *Bundle) Dialect() string {
	return b.Manifest.Dialect
}

// Version returns the bundle version.
func (b *Bundle) Version() string {
	return b.Manifest.Version
}

// Source returns the module source of the bundle. Its name matches the
// compiled module, so loading it again hits the runtime cache.
func (b *Bundle) Source() wasm.ModuleSource {
	return &wasm.FileModuleSource{Path: b.Manifest.WasmPath()}
}
