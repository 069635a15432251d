package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/woxQAQ/hanzi-ime/internal/wasm/guest"
)

const validManifest = `name: pinyin
version: 0.1.0
dialect: zh-Hans
wasm:
  file: engine.wasm
author: test
license: MIT
`

// writeBundle creates <root>/<dir> with the given manifest and, when wasmBytes
// is not nil, an engine.wasm next to it.
func writeBundle(t *testing.T, root, dir, manifest string, wasmBytes []byte) string {
	t.Helper()
	bundleDir := filepath.Join(root, dir)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if wasmBytes != nil {
		if err := os.WriteFile(filepath.Join(bundleDir, "engine.wasm"), wasmBytes, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return bundleDir
}

func echoModule() []byte {
	return guest.Build(guest.Options{Mode: guest.Echo})
}
