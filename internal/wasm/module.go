package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxModuleBytes bounds how much a remote source may send (32MB).
const DefaultMaxModuleBytes = 32 << 20

// wasmContentType is the media type required for streaming compilation.
const wasmContentType = "application/wasm"

// wasmHeader is the binary magic and version 1.
var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// ModuleLoader handles loading and compiling Wasm modules.
type ModuleLoader struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewModuleLoader creates a new module loader.
func NewModuleLoader(runtime *Runtime, logger *zap.Logger) *ModuleLoader {
	return &ModuleLoader{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-loader")),
	}
}

// ModuleSource represents a source for Wasm bytecode.
type ModuleSource interface {
	// Bytes returns the Wasm bytecode.
	Bytes(ctx context.Context) ([]byte, error)

	// Name returns a name/identifier for this module.
	Name() string
}

// FileModuleSource loads Wasm from a file.
type FileModuleSource struct {
	Path string
}

// Bytes reads the Wasm file.
func (f *FileModuleSource) Bytes(context.Context) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Name returns the file path as the module name.
func (f *FileModuleSource) Name() string {
	return f.Path
}

// MemoryModuleSource loads Wasm from memory.
type MemoryModuleSource struct {
	ModuleName string
	Data       []byte
}

// Bytes returns the Wasm bytecode.
func (m *MemoryModuleSource) Bytes(context.Context) ([]byte, error) {
	return m.Data, nil
}

// Name returns the module name.
func (m *MemoryModuleSource) Name() string {
	return m.ModuleName
}

// FetchMode selects how an HTTP source reads the module body.
type FetchMode string

const (
	// FetchStreaming reads the body straight into the compiler input and
	// rejects non-wasm payloads after the first eight bytes. It needs the
	// server to answer with Content-Type application/wasm and falls back
	// to FetchBuffered otherwise.
	FetchStreaming FetchMode = "streaming"

	// FetchBuffered downloads the whole body before compiling it.
	FetchBuffered FetchMode = "buffered"
)

// HTTPModuleSource fetches Wasm from a URL.
type HTTPModuleSource struct {
	URL      string
	Mode     FetchMode
	Client   *http.Client
	MaxBytes int64
	Logger   *zap.Logger
}

// Name returns the URL as the module name.
func (h *HTTPModuleSource) Name() string {
	return h.URL
}

// Bytes downloads the module.
func (h *HTTPModuleSource) Bytes(ctx context.Context) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxModuleBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", wasmContentType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	mode := h.Mode
	if mode == "" {
		mode = FetchStreaming
	}
	if mode == FetchStreaming && !isWasmContentType(resp.Header.Get("Content-Type")) {
		logger.Debug("Server did not send application/wasm, using buffered fetch",
			zap.String("url", h.URL),
			zap.String("content_type", resp.Header.Get("Content-Type")),
		)
		mode = FetchBuffered
	}

	body := io.LimitReader(resp.Body, limit+1)

	var data []byte
	switch mode {
	case FetchStreaming:
		data, err = readStreaming(body, resp.ContentLength, limit)
	case FetchBuffered:
		data, err = io.ReadAll(body)
	default:
		return nil, fmt.Errorf("unknown fetch mode '%s'", mode)
	}
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("module exceeds %d bytes", limit)
	}
	return data, nil
}

// readStreaming checks the header as soon as it arrives, then reads the rest
// into a buffer sized from Content-Length when the server sent one.
func readStreaming(r io.Reader, contentLength, limit int64) ([]byte, error) {
	header := make([]byte, len(wasmHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("truncated module header")
		}
		return nil, err
	}
	if !bytes.Equal(header, wasmHeader) {
		return nil, fmt.Errorf("invalid module header % x", header)
	}

	size := int64(bytes.MinRead)
	if contentLength > 0 && contentLength <= limit {
		size = contentLength
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.Write(header)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isWasmContentType(v string) bool {
	mediaType, _, err := mime.ParseMediaType(v)
	return err == nil && mediaType == wasmContentType
}

// LoadModule loads a Wasm module from a source.
// Compiles it if not already cached.
func (l *ModuleLoader) LoadModule(ctx context.Context, source ModuleSource) (*CompiledModule, error) {
	// Check cache first
	if cached, ok := l.runtime.GetCompiledModule(source.Name()); ok {
		l.logger.Debug("Module cache hit",
			zap.String("module", source.Name()),
		)
		return cached, nil
	}

	// Load Wasm bytes
	wasmBytes, err := source.Bytes(ctx)
	if err != nil {
		return nil, &FetchError{Source: source.Name(), Err: err}
	}

	l.logger.Info("Compiling Wasm module",
		zap.String("module", source.Name()),
		zap.Int("size_bytes", len(wasmBytes)),
	)

	startTime := time.Now()

	// wazero.CompileModule decodes and validates the Wasm binary
	// This is CPU-intensive but only done once per module
	compiled, err := l.runtime.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, &CompilationError{
			ModuleName: source.Name(),
			Err:        err,
		}
	}

	duration := time.Since(startTime)

	compiledModule := &CompiledModule{
		Module:     compiled,
		Name:       source.Name(),
		Source:     source.Name(),
		SizeBytes:  int64(len(wasmBytes)),
		Bytes:      wasmBytes,
		CompiledAt: time.Now().Unix(),
	}

	l.runtime.StoreCompiledModule(compiledModule)

	l.logger.Info("Module compiled successfully",
		zap.String("module", source.Name()),
		zap.Duration("duration", duration),
	)

	return compiledModule, nil
}

// LoadModuleFromFile is a convenience function for loading from a file path.
func (l *ModuleLoader) LoadModuleFromFile(ctx context.Context, path string) (*CompiledModule, error) {
	source := &FileModuleSource{Path: path}
	return l.LoadModule(ctx, source)
}

// LoadModuleFromMemory loads from a byte slice.
func (l *ModuleLoader) LoadModuleFromMemory(ctx context.Context, name string, data []byte) (*CompiledModule, error) {
	source := &MemoryModuleSource{ModuleName: name, Data: data}
	return l.LoadModule(ctx, source)
}

// LoadModuleFromURL fetches and compiles a module served over HTTP.
func (l *ModuleLoader) LoadModuleFromURL(ctx context.Context, url string, mode FetchMode) (*CompiledModule, error) {
	source := &HTTPModuleSource{URL: url, Mode: mode, Logger: l.logger}
	return l.LoadModule(ctx, source)
}
