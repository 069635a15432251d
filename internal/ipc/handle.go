// Package ipc exchanges UTF-8 messages with an IME engine instance through
// the two fixed-size buffers the engine keeps in its linear memory.
//
// A Loader turns a module source into a ready Handle. A Messenger sends one
// query per Exchange call: the query is written at the query buffer base,
// truncated to the buffer capacity without any error, the engine's translate
// export is called with the number of bytes written, and the reply bytes are
// decoded from the reply buffer base.
package ipc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SharedMemory is the host view of the engine's linear memory.
// *wasm.Memory satisfies it.
type SharedMemory interface {
	ReadBytes(ptr, length uint32) ([]byte, error)
	WriteBytes(ptr uint32, data []byte) error
}

// TranslateFunc runs the engine on queryLen bytes at the query buffer base
// and returns the number of bytes it wrote at the reply buffer base.
type TranslateFunc func(ctx context.Context, queryLen uint32) (uint32, error)

// Bindings are the buffer locations reported by the engine. They are fixed
// for the lifetime of an instance.
type Bindings struct {
	QueryPtr uint32
	ReplyPtr uint32
	Capacity uint32
}

// Handle is one loaded engine instance. The query and reply buffers form a
// single-slot channel, so a Handle serves one exchange at a time.
type Handle struct {
	mu    sync.Mutex
	state atomic.Int32

	name      string
	mem       SharedMemory
	bindings  Bindings
	translate TranslateFunc

	instance *wasm.Instance
	module   *wasm.CompiledModule
}

// NewHandle returns a ready handle over an already bound boundary.
func NewHandle(name string, mem SharedMemory, bindings Bindings, translate TranslateFunc) *Handle {
	h := &Handle{
		name:      name,
		mem:       mem,
		bindings:  bindings,
		translate: translate,
	}
	h.setState(StateReady)
	return h
}

// Name returns the module name the handle was loaded from.
func (h *Handle) Name() string {
	return h.name
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Ready reports whether messages may be exchanged.
func (h *Handle) Ready() bool {
	return h.State() == StateReady
}

// Bindings returns the buffer locations. Zero until the handle is ready.
func (h *Handle) Bindings() Bindings {
	return h.bindings
}

// ModuleBytes returns the binary the instance was compiled from, if known.
func (h *Handle) ModuleBytes() []byte {
	if h.module == nil {
		return nil
	}
	return h.module.Bytes
}

// Close waits for an in-flight exchange, then releases the instance.
// Later exchanges fail with ErrNotReady.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.State() == StateClosed {
		return nil
	}
	h.setState(StateClosed)

	if h.instance != nil {
		return h.instance.Close(ctx)
	}
	return nil
}

func (h *Handle) setState(s State) {
	h.state.Store(int32(s))
}
