package wasm

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRuntime(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime == nil {
		t.Fatal("Runtime is nil")
	}

	// Cleanup
	if err := runtime.Close(context.Background()); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Close multiple times should not error.
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	config := DefaultRuntimeConfig()

	if config.MemoryPages != 256 {
		t.Errorf("Default memory pages = %d, want 256", config.MemoryPages)
	}

	if config.DebugEnabled {
		t.Error("Debug should be disabled by default")
	}

	if config.MaxInstances != 100 {
		t.Errorf("Default max instances = %d, want 100", config.MaxInstances)
	}
}

func TestRuntimeConfiguration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := &RuntimeConfig{
		MemoryPages:  128,
		DebugEnabled: true,
		MaxInstances: 50,
	}

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime.Config().MemoryPages != 128 {
		t.Errorf("Memory pages not set correctly")
	}

	if runtime.Config().MaxInstances != 50 {
		t.Errorf("Max instances not set correctly")
	}

	runtime.Close(ctx)
}

func TestRuntimeContextCancellation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Cancel context.
	cancel()

	// Close with cancelled context.
	err = runtime.Close(ctx)
	// wazero should handle cancelled context gracefully
	if err != nil && err != context.Canceled {
		t.Errorf("Unexpected error when closing with cancelled context: %v", err)
	}
}

func TestRuntimeModuleCache(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	// Test storing and retrieving compiled modules.
	module := &CompiledModule{
		Name:       "test-module",
		Source:     "test",
		SizeBytes:  1024,
		CompiledAt: time.Now().Unix(),
	}

	runtime.StoreCompiledModule(module)

	retrieved, ok := runtime.GetCompiledModule("test-module")
	if !ok {
		t.Fatal("Failed to retrieve module from cache")
	}

	if retrieved.Name != "test-module" {
		t.Errorf("Retrieved wrong module: %s", retrieved.Name)
	}
}

func TestRuntimeInstanceTracking(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	// Test storing and retrieving instances.
	instanceID := "test-instance"
	instanceData := "test-data"

	runtime.StoreInstance(instanceID, instanceData)
	runtime.StoreInstance(instanceID, instanceData)

	if runtime.InstanceCount() != 1 {
		t.Errorf("InstanceCount() = %d, want 1", runtime.InstanceCount())
	}

	retrieved, ok := runtime.GetInstance(instanceID)
	if !ok {
		t.Fatal("Failed to retrieve instance from tracking")
	}

	if retrieved != instanceData {
		t.Errorf("Retrieved wrong instance data")
	}

	// Test deletion.
	runtime.DeleteInstance(instanceID)

	_, ok = runtime.GetInstance(instanceID)
	if ok {
		t.Error("Instance should have been deleted")
	}

	// Deleting an unknown instance leaves the count alone.
	runtime.DeleteInstance(instanceID)
	if runtime.InstanceCount() != 0 {
		t.Errorf("InstanceCount() = %d, want 0", runtime.InstanceCount())
	}
}

func TestRuntimeCompilationCacheDir(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := DefaultRuntimeConfig()
	config.CacheDir = t.TempDir()

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	if runtime.cache == nil {
		t.Error("Compilation cache should be set when CacheDir is given")
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestRuntimeIsClosed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if runtime.IsClosed() {
		t.Error("Runtime should not be closed initially")
	}

	runtime.Close(ctx)

	if !runtime.IsClosed() {
		t.Error("Runtime should be closed after Close()")
	}
}

func TestCompilationError(t *testing.T) {
	err := &CompilationError{
		ModuleName: "test",
		Err:        &testError{},
	}

	expected := "failed to compile Wasm module 'test': test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestInstantiationError(t *testing.T) {
	err := &InstantiationError{
		ModuleName: "test",
		InstanceID: "inst-1",
		Err:        &testError{},
	}

	expected := "failed to instantiate module 'test' (instance: inst-1): test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestModuleNotFoundError(t *testing.T) {
	err := &ModuleNotFoundError{ModuleName: "test"}

	expected := "module 'test' not found in cache"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestFunctionNotFoundError(t *testing.T) {
	err := &FunctionNotFoundError{
		ModuleName:   "test",
		FunctionName: "parse",
	}

	expected := "function 'parse' not found in module 'test'"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestFetchError(t *testing.T) {
	inner := &testError{}
	err := &FetchError{Source: "engine.wasm", Err: inner}

	expected := "failed to fetch Wasm module 'engine.wasm': test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, inner) {
		t.Error("FetchError should unwrap to its cause")
	}
}

func TestMemoryAccessError(t *testing.T) {
	err := &MemoryAccessError{Operation: "write query", Address: 1024, Length: 5, Err: ErrOutOfRange}

	expected := "memory access failed (op=write query, addr=1024, len=5): out of range of linear memory"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, ErrOutOfRange) {
		t.Error("MemoryAccessError should unwrap to ErrOutOfRange")
	}
}

func TestCallError(t *testing.T) {
	err := &CallError{FunctionName: ExportTranslate, Err: &testError{}}

	expected := "call to 'translate_zh_hans' failed: test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

// testError is a simple error for testing.
type testError struct{}

func (e *testError) Error() string {
	return "test error"
}

func TestLogTraceAcceptsAnyCode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewHostFunctions(zap.New(core))
	trace := h.logTrace(zapcore.DebugLevel)

	codes := []int32{math.MinInt32, -1, 0, math.MaxInt32}
	for i, code := range codes {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("trace(%d) panicked: %v", code, r)
				}
			}()
			trace(context.Background(), nil, code)
		}()

		if got := h.TraceCount(); got != uint64(i+1) {
			t.Errorf("TraceCount() = %d after %d calls", got, i+1)
		}
	}

	entries := logs.FilterMessage("Wasm trace code").All()
	if len(entries) != len(codes) {
		t.Fatalf("got %d trace lines, want %d", len(entries), len(codes))
	}
	for i, e := range entries {
		if got := e.ContextMap()["code"]; got != codes[i] {
			t.Errorf("entry %d code = %v, want %d", i, got, codes[i])
		}
		if e.Level != zapcore.DebugLevel {
			t.Errorf("entry %d level = %s, want debug", i, e.Level)
		}
	}
}

func TestLogTraceLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHostFunctions(zap.New(core))

	h.logTrace(zapcore.DebugLevel)(context.Background(), nil, 7)
	if logs.Len() != 0 {
		t.Errorf("debug trace should be filtered at info, got %d lines", logs.Len())
	}

	h.logTrace(zapcore.InfoLevel)(context.Background(), nil, 7)
	if logs.Len() != 1 {
		t.Errorf("info trace lines = %d, want 1", logs.Len())
	}

	// Filtered calls are still counted.
	if h.TraceCount() != 2 {
		t.Errorf("TraceCount() = %d, want 2", h.TraceCount())
	}
}
