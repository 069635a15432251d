package wasm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// instanceSeq disambiguates IDs generated within the same nanosecond.
var instanceSeq atomic.Uint64

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
	imports   HostImports
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, imports HostImports, logger *zap.Logger) *InstanceManager {
	if imports.Module == "" {
		imports.Module = DefaultImportModule
	}
	if imports.Trace == "" {
		imports.Trace = DefaultTraceImport
	}
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		imports:   imports,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string

	// Exported function names to look up once and cache.
	Exports []string
}

// Instance represents an instantiated Wasm module.
type Instance struct {
	// wazero module instance.
	module  api.Module
	runtime *Runtime

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function
}

// Instantiate creates a new instance from a compiled module.
// Host functions are exported to the Wasm module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.InstanceCount() >= limit {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        fmt.Errorf("instance limit %d reached", limit),
		}
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	if err := m.ensureHostModule(ctx); err != nil {
		return nil, err
	}

	// Reactor-style guests initialise through _initialize; wazero skips
	// start functions the guest does not export.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions("_initialize")

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports := m.cacheExportedFunctions(module, config.Exports)

	instance := &Instance{
		module:    module,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
	}

	// Track active instance.
	m.runtime.StoreInstance(instanceID, module)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	if i.runtime != nil {
		i.runtime.DeleteInstance(i.ID)
	}
	return i.module.Close(ctx)
}

// Memory returns the exported linear memory with the given name.
func (i *Instance) Memory(name string) (api.Memory, error) {
	mem := i.module.ExportedMemory(name)
	if mem == nil {
		return nil, &MemoryNotFoundError{ModuleName: i.Name, MemoryName: name}
	}
	return mem, nil
}

// Function returns an exported function, preferring the cached lookup.
func (i *Instance) Function(name string) (api.Function, error) {
	if fn, ok := i.exports[name]; ok {
		return fn, nil
	}
	if fn := i.module.ExportedFunction(name); fn != nil {
		return fn, nil
	}
	return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
}

// CallUint32 calls an exported function that returns a single i32.
func (i *Instance) CallUint32(ctx context.Context, name string, params ...uint32) (uint32, error) {
	fn, err := i.Function(name)
	if err != nil {
		return 0, err
	}
	return CallUint32(ctx, name, fn, params...)
}

// CallUint32 calls fn with i32 parameters and returns its single i32 result.
func CallUint32(ctx context.Context, name string, fn api.Function, params ...uint32) (uint32, error) {
	args := make([]uint64, len(params))
	for idx, p := range params {
		args[idx] = api.EncodeU32(p)
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return 0, &CallError{FunctionName: name, Err: err}
	}
	if len(results) != 1 {
		return 0, &CallError{
			FunctionName: name,
			Err:          fmt.Errorf("expected 1 result, got %d", len(results)),
		}
	}
	return api.DecodeU32(results[0]), nil
}

// cacheExportedFunctions caches references to exported functions.
// This improves performance by avoiding repeated lookups.
func (m *InstanceManager) cacheExportedFunctions(module api.Module, names []string) map[string]api.Function {
	exports := make(map[string]api.Function, len(names))

	for _, name := range names {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

// ensureHostModule instantiates the host import module once per runtime
// and module name.
func (m *InstanceManager) ensureHostModule(ctx context.Context) error {
	r := m.runtime
	r.hostMu.Lock()
	defer r.hostMu.Unlock()

	if trace, ok := r.hostModules[m.imports.Module]; ok {
		if trace != m.imports.Trace {
			return &HostFunctionError{
				FunctionName: m.imports.Trace,
				Err:          fmt.Errorf("host module '%s' already exports '%s'", m.imports.Module, trace),
			}
		}
		return nil
	}

	builder := r.runtime.NewHostModuleBuilder(m.imports.Module)
	m.exportHostFunctions(builder)

	if _, err := builder.Instantiate(ctx); err != nil {
		return &HostFunctionError{FunctionName: m.imports.Trace, Err: err}
	}
	r.hostModules[m.imports.Module] = m.imports.Trace

	m.logger.Debug("Host module instantiated",
		zap.String("module", m.imports.Module),
		zap.String("trace", m.imports.Trace),
	)
	return nil
}

// exportHostFunctions registers Go functions for import by Wasm modules.
func (m *InstanceManager) exportHostFunctions(builder wazero.HostModuleBuilder) {
	impl := m.hostFuncs

	// Trace lines are debug output unless the runtime runs in debug mode.
	level := zapcore.DebugLevel
	if m.runtime.Config().DebugEnabled {
		level = zapcore.InfoLevel
	}

	builder.NewFunctionBuilder().
		WithFunc(impl.logTrace(level)).
		WithParameterNames("code").
		Export(m.imports.Trace)
}

// generateInstanceID generates a unique instance ID.
func generateInstanceID() string {
	return fmt.Sprintf("inst-%d-%d", time.Now().UnixNano(), instanceSeq.Add(1))
}
