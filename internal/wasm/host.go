package wasm

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Default names of the host import module and its trace function.
const (
	DefaultImportModule = "js"
	DefaultTraceImport  = "js_log_trace"
)

// HostImports names the functions the host provides to guests.
type HostImports struct {
	// Module is the import module name guests link against.
	Module string

	// Trace is the name of the diagnostic trace function.
	// Signature: trace(code: i32)
	Trace string
}

// DefaultHostImports returns the import names used by the IME engine.
func DefaultHostImports() HostImports {
	return HostImports{
		Module: DefaultImportModule,
		Trace:  DefaultTraceImport,
	}
}

// HostFunctionsImpl implements host functions for Wasm modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
	traces atomic.Uint64
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// logTrace returns the trace import. Guests call it with a diagnostic code;
// any value is accepted and only produces a log line at level.
func (h *HostFunctionsImpl) logTrace(level zapcore.Level) func(context.Context, api.Module, int32) {
	return func(_ context.Context, mod api.Module, code int32) {
		h.traces.Add(1)

		name := ""
		if mod != nil {
			name = mod.Name()
		}
		if ce := h.logger.Check(level, "Wasm trace code"); ce != nil {
			ce.Write(
				zap.String("instance_id", name),
				zap.Int32("code", code),
			)
		}
	}
}

// TraceCount returns how many trace calls guests have made.
func (h *HostFunctionsImpl) TraceCount() uint64 {
	return h.traces.Load()
}
