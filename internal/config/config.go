package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/woxQAQ/hanzi-ime/internal/wasm"
)

// EnvPrefix prefixes environment overrides, e.g. HANZI_IME_ENGINE_SOURCE.
const EnvPrefix = "HANZI_IME"

// validate is shared; validator caches struct metadata.
var validate = validator.New()

// Config is the process configuration.
type Config struct {
	LogLevel    string       `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile     string       `mapstructure:"log_file"`
	EnginePaths []string     `mapstructure:"engine_paths"`
	Engine      EngineConfig `mapstructure:"engine"`
	Wasm        WasmConfig   `mapstructure:"wasm"`
	Server      ServerConfig `mapstructure:"server"`
}

// EngineConfig selects the engine module to load.
type EngineConfig struct {
	// Name of a bundle found under engine_paths. Takes precedence over Source.
	Name string `mapstructure:"name"`
	// Source is a file path, an http(s) URL or builtin:<mode>.
	Source string `mapstructure:"source" validate:"required_without=Name"`
	// FetchMode applies to URL sources.
	FetchMode      string        `mapstructure:"fetch_mode" validate:"oneof=streaming buffered"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	MaxModuleBytes int64         `mapstructure:"max_module_bytes" validate:"gt=0"`
	ABI            wasm.ABI      `mapstructure:"abi"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages" validate:"min=1,max=65536"`
	// Log guest trace calls at info level.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances, 0 for no limit.
	MaxInstances int `mapstructure:"max_instances" validate:"min=0"`
}

// ServerConfig holds the WebSocket chat server settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen" validate:"required"`
	// ReadLimit caps the size of one client frame in bytes.
	ReadLimit int64 `mapstructure:"read_limit" validate:"gt=0"`
}

// RuntimeConfig converts the wasm section for wasm.NewRuntime.
func (c WasmConfig) RuntimeConfig() *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:  c.MemoryPages,
		DebugEnabled: c.Debug,
		CacheDir:     c.CacheDir,
		MaxInstances: c.MaxInstances,
	}
}

// ValidationError reports a configuration that failed validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Load reads configuration from defaults, the optional file at configPath
// and HANZI_IME_* environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("engine_paths", []string{"./engines"})

	// Engine defaults
	v.SetDefault("engine.name", "")
	v.SetDefault("engine.source", "builtin:echo")
	v.SetDefault("engine.fetch_mode", string(wasm.FetchStreaming))
	v.SetDefault("engine.fetch_timeout", 30*time.Second)
	v.SetDefault("engine.max_module_bytes", wasm.DefaultMaxModuleBytes)

	abi := wasm.DefaultABI()
	v.SetDefault("engine.abi.memory", abi.Memory)
	v.SetDefault("engine.abi.buffer_size", abi.BufferSize)
	v.SetDefault("engine.abi.query_buffer", abi.QueryBuffer)
	v.SetDefault("engine.abi.reply_buffer", abi.ReplyBuffer)
	v.SetDefault("engine.abi.translate", abi.Translate)
	v.SetDefault("engine.abi.import_module", abi.ImportModule)
	v.SetDefault("engine.abi.trace_import", abi.TraceImport)

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)

	// Server defaults
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_limit", 4096)
}
