package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Default log level mismatch: got %s, want info", cfg.LogLevel)
	}

	if len(cfg.EnginePaths) != 1 || cfg.EnginePaths[0] != "./engines" {
		t.Errorf("Default engine paths mismatch: got %v, want [./engines]", cfg.EnginePaths)
	}

	if cfg.Engine.Source != "builtin:echo" {
		t.Errorf("Default engine source mismatch: got %s", cfg.Engine.Source)
	}

	if cfg.Engine.FetchMode != "streaming" {
		t.Errorf("Default fetch mode mismatch: got %s", cfg.Engine.FetchMode)
	}

	if cfg.Engine.FetchTimeout != 30*time.Second {
		t.Errorf("Default fetch timeout mismatch: got %s", cfg.Engine.FetchTimeout)
	}

	if cfg.Engine.ABI != wasm.DefaultABI() {
		t.Errorf("Default ABI mismatch: got %+v", cfg.Engine.ABI)
	}

	if cfg.Wasm.MemoryPages != 256 {
		t.Errorf("Default memory pages mismatch: got %d, want 256", cfg.Wasm.MemoryPages)
	}

	if cfg.Server.Listen != ":8080" || cfg.Server.ReadLimit != 4096 {
		t.Errorf("Default server mismatch: got %+v", cfg.Server)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_file: /tmp/hanzi-ime.log
engine:
  source: https://example.com/engine.wasm
  fetch_mode: buffered
  fetch_timeout: 5s
  abi:
    translate: translate
wasm:
  memory_pages: 32
  max_instances: 4
server:
  listen: 127.0.0.1:9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Log level mismatch: got %s, want debug", cfg.LogLevel)
	}
	if cfg.LogFile != "/tmp/hanzi-ime.log" {
		t.Errorf("Log file mismatch: got %s", cfg.LogFile)
	}
	if cfg.Engine.Source != "https://example.com/engine.wasm" {
		t.Errorf("Engine source mismatch: got %s", cfg.Engine.Source)
	}
	if cfg.Engine.FetchMode != "buffered" {
		t.Errorf("Fetch mode mismatch: got %s", cfg.Engine.FetchMode)
	}
	if cfg.Engine.FetchTimeout != 5*time.Second {
		t.Errorf("Fetch timeout mismatch: got %s", cfg.Engine.FetchTimeout)
	}
	if cfg.Engine.ABI.Translate != "translate" {
		t.Errorf("ABI translate mismatch: got %s", cfg.Engine.ABI.Translate)
	}
	// Unset ABI names keep their defaults.
	if cfg.Engine.ABI.BufferSize != wasm.ExportBufferSize {
		t.Errorf("ABI buffer size mismatch: got %s", cfg.Engine.ABI.BufferSize)
	}

	rc := cfg.Wasm.RuntimeConfig()
	if rc.MemoryPages != 32 || rc.MaxInstances != 4 {
		t.Errorf("Runtime config mismatch: got %+v", rc)
	}
	if cfg.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen mismatch: got %s", cfg.Server.Listen)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "engine:\n  source: ./from-file.wasm\n")
	t.Setenv("HANZI_IME_ENGINE_SOURCE", "./from-env.wasm")
	t.Setenv("HANZI_IME_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Engine.Source != "./from-env.wasm" {
		t.Errorf("Env override mismatch: got %s", cfg.Engine.Source)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Env log level mismatch: got %s", cfg.LogLevel)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "log level", content: "log_level: loud\n"},
		{name: "fetch mode", content: "engine:\n  fetch_mode: eager\n"},
		{name: "no engine", content: "engine:\n  source: \"\"\n"},
		{name: "memory pages", content: "wasm:\n  memory_pages: 0\n"},
		{name: "read limit", content: "server:\n  read_limit: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Load() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestLoadNamedEngineWithoutSource(t *testing.T) {
	cfg, err := Load(writeConfig(t, "engine:\n  name: pinyin\n  source: \"\"\n"))
	if err != nil {
		t.Fatalf("Named engine should not need a source: %v", err)
	}
	if cfg.Engine.Name != "pinyin" {
		t.Errorf("Engine name mismatch: got %s", cfg.Engine.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
