package ipc

import (
	"context"
	"errors"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
	"go.uber.org/zap"
)

// Loader compiles and instantiates engine modules and binds their buffers.
type Loader struct {
	modules   *wasm.ModuleLoader
	instances *wasm.InstanceManager
	abi       wasm.ABI
	logger    *zap.Logger
}

// NewLoader creates a loader for engines following abi. Empty ABI names
// take the engine defaults.
func NewLoader(runtime *wasm.Runtime, hostFuncs *wasm.HostFunctionsImpl, abi wasm.ABI, logger *zap.Logger) *Loader {
	abi = abi.WithDefaults()
	return &Loader{
		modules:   wasm.NewModuleLoader(runtime, logger),
		instances: wasm.NewInstanceManager(runtime, hostFuncs, abi.Imports(), logger),
		abi:       abi,
		logger:    logger.With(zap.String("component", "ipc-loader")),
	}
}

// ABI returns the export names the loader binds.
func (l *Loader) ABI() wasm.ABI {
	return l.abi
}

// Load makes source ready for message exchange. onReady, if not nil, runs
// after the handle is ready and before Load returns. Any failure is
// returned as a *LoadError and onReady is not called.
func (l *Loader) Load(ctx context.Context, source wasm.ModuleSource, onReady func()) (*Handle, error) {
	h := &Handle{name: source.Name()}
	h.setState(StateLoading)

	l.logger.Info("Loading engine", zap.String("source", source.Name()))

	compiled, err := l.modules.LoadModule(ctx, source)
	if err != nil {
		stage := StageCompile
		var fetchErr *wasm.FetchError
		if errors.As(err, &fetchErr) {
			stage = StageFetch
		}
		return nil, l.fail(h, stage, err)
	}

	inst, err := l.instances.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: compiled.Name,
		Exports:    l.abi.Functions(),
	})
	if err != nil {
		return nil, l.fail(h, StageInstantiate, err)
	}

	if err := l.bind(ctx, h, inst); err != nil {
		if closeErr := inst.Close(ctx); closeErr != nil {
			l.logger.Warn("Failed to close unbound instance",
				zap.String("instance_id", inst.ID),
				zap.Error(closeErr),
			)
		}
		return nil, l.fail(h, StageBind, err)
	}

	h.instance = inst
	h.module = compiled
	h.setState(StateReady)

	l.logger.Info("Engine ready",
		zap.String("source", source.Name()),
		zap.String("instance_id", inst.ID),
		zap.Uint32("query_ptr", h.bindings.QueryPtr),
		zap.Uint32("reply_ptr", h.bindings.ReplyPtr),
		zap.Uint32("capacity", h.bindings.Capacity),
	)

	if onReady != nil {
		onReady()
	}
	return h, nil
}

// bind reads the buffer locations and checks they fit in linear memory.
func (l *Loader) bind(ctx context.Context, h *Handle, inst *wasm.Instance) error {
	mem, err := inst.Memory(l.abi.Memory)
	if err != nil {
		return err
	}

	translate, err := inst.Function(l.abi.Translate)
	if err != nil {
		return err
	}

	capacity, err := inst.CallUint32(ctx, l.abi.BufferSize)
	if err != nil {
		return err
	}
	queryPtr, err := inst.CallUint32(ctx, l.abi.QueryBuffer)
	if err != nil {
		return err
	}
	replyPtr, err := inst.CallUint32(ctx, l.abi.ReplyBuffer)
	if err != nil {
		return err
	}

	view := wasm.NewMemory(mem)
	if err := view.CheckRange("bind query buffer", queryPtr, capacity); err != nil {
		return err
	}
	if err := view.CheckRange("bind reply buffer", replyPtr, capacity); err != nil {
		return err
	}

	if capacity == 0 {
		l.logger.Warn("Engine reports zero buffer capacity, every query will be empty",
			zap.String("instance_id", inst.ID),
		)
	}

	name := l.abi.Translate
	h.mem = view
	h.bindings = Bindings{QueryPtr: queryPtr, ReplyPtr: replyPtr, Capacity: capacity}
	h.translate = func(ctx context.Context, n uint32) (uint32, error) {
		return wasm.CallUint32(ctx, name, translate, n)
	}
	return nil
}

func (l *Loader) fail(h *Handle, stage string, err error) error {
	h.setState(StateUninitialized)
	l.logger.Error("Engine load failed",
		zap.String("source", h.name),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return &LoadError{Source: h.name, Stage: stage, Err: err}
}
