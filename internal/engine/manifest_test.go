package engine

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
)

func TestParseManifest_Valid(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "pinyin", validManifest, echoModule())

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.Name != "pinyin" {
		t.Errorf("expected Name 'pinyin', got '%s'", manifest.Name)
	}

	if manifest.Version != "0.1.0" {
		t.Errorf("expected Version '0.1.0', got '%s'", manifest.Version)
	}

	if manifest.Dialect != DialectSimplifiedChinese {
		t.Errorf("expected Dialect 'zh-Hans', got '%s'", manifest.Dialect)
	}

	if manifest.Wasm.File != "engine.wasm" {
		t.Errorf("expected Wasm.File 'engine.wasm', got '%s'", manifest.Wasm.File)
	}

	if manifest.Path() != filepath.Join(dir, ManifestFile) {
		t.Errorf("unexpected Path '%s'", manifest.Path())
	}

	if manifest.WasmPath() != filepath.Join(dir, "engine.wasm") {
		t.Errorf("unexpected WasmPath '%s'", manifest.WasmPath())
	}

	if manifest.Dir() != dir {
		t.Errorf("expected Dir '%s', got '%s'", dir, manifest.Dir())
	}
}

func TestParseManifest_ABI(t *testing.T) {
	content := validManifest + `abi:
  translate: translate
  import_module: env
`
	dir := writeBundle(t, t.TempDir(), "custom", content, echoModule())

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	abi := manifest.ABI.WithDefaults()
	if abi.Translate != "translate" || abi.ImportModule != "env" {
		t.Errorf("ABI overrides not parsed: %+v", manifest.ABI)
	}
	if abi.BufferSize != wasm.ExportBufferSize {
		t.Errorf("expected default buffer size export, got '%s'", abi.BufferSize)
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	_, err := ParseManifest(filepath.Join(t.TempDir(), "nonexistent"))

	var notFound *ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ManifestNotFoundError, got %T", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "broken", "name: [unclosed\n", echoModule())

	_, err := ParseManifest(dir)

	var parseErr *ManifestParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ManifestParseError, got %T", err)
	}
}

func TestParseManifest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "missing name", content: strings.Replace(validManifest, "name: pinyin\n", "", 1), field: "name"},
		{name: "missing version", content: strings.Replace(validManifest, "version: 0.1.0\n", "", 1), field: "version"},
		{name: "missing dialect", content: strings.Replace(validManifest, "dialect: zh-Hans\n", "", 1), field: "dialect"},
		{name: "bad dialect", content: strings.Replace(validManifest, "zh-Hans", "zh-Hant", 1), field: "dialect"},
		{name: "missing wasm file", content: strings.Replace(validManifest, "  file: engine.wasm\n", "", 1), field: "wasm.file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeBundle(t, t.TempDir(), "bundle", tt.content, echoModule())

			_, err := ParseManifest(dir)

			var validationErr *ManifestValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ManifestValidationError, got %T (%v)", err, err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("expected Field '%s', got '%s'", tt.field, validationErr.Field)
			}
		})
	}
}

func TestParseManifest_BadDialectMessage(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "bundle", strings.Replace(validManifest, "zh-Hans", "ja", 1), echoModule())

	_, err := ParseManifest(dir)
	if err == nil || !strings.Contains(err.Error(), "unsupported dialect: ja (must be one of: zh-Hans)") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "no-wasm", validManifest, nil)

	_, err := ParseManifest(dir)

	var notFound *WasmNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected WasmNotFoundError, got %T", err)
	}
}
