// Package guest assembles small Wasm modules that implement the IME engine
// IPC interface without any pinyin logic. They let the host run end to end
// without the real engine artifact and give tests a guest with known
// behavior.
//
// The generated module exports a memory holding a query and a reply buffer
// of equal capacity, the three binding functions and a translate function
// whose reply depends on Mode. When tracing is enabled, translate reports
// the query length through the host trace import before replying.
package guest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/woxQAQ/hanzi-ime/internal/wasm"
)

// DefaultCapacity matches the buffer size of the IME engine.
const DefaultCapacity = 150

// queryOffset keeps the buffers away from address zero.
const queryOffset = 1024

const pageSize = 65536

// Mode selects what translate writes into the reply buffer.
type Mode int

const (
	// Echo copies the query bytes into the reply buffer.
	Echo Mode = iota
	// Empty writes nothing and returns 0.
	Empty
	// Fixed writes Options.Reply regardless of the query.
	Fixed
	// Overflow returns capacity+1 without writing.
	Overflow
	// Trap executes unreachable.
	Trap
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Echo:
		return "echo"
	case Empty:
		return "empty"
	case Fixed:
		return "fixed"
	case Overflow:
		return "overflow"
	case Trap:
		return "trap"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Options configures the generated module.
type Options struct {
	// Capacity of each IPC buffer in bytes. Zero means DefaultCapacity.
	Capacity uint32

	Mode  Mode
	Reply string

	// Trace makes translate call the host trace import with the query length.
	Trace bool

	// ABI names; empty fields take the engine defaults.
	ABI wasm.ABI

	// Omit leaves the named export out of the module.
	Omit string
}

// Layout reports where the buffers of a generated module live.
type Layout struct {
	QueryPtr uint32
	ReplyPtr uint32
	Capacity uint32
}

// LayoutFor returns the buffer layout Build uses for opts.
func LayoutFor(opts Options) Layout {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return Layout{
		QueryPtr: queryOffset,
		ReplyPtr: queryOffset + capacity,
		Capacity: capacity,
	}
}

// Build returns the binary module described by opts.
func Build(opts Options) []byte {
	abi := opts.ABI.WithDefaults()
	layout := LayoutFor(opts)
	dataPtr := layout.ReplyPtr + layout.Capacity
	reply := []byte(opts.Reply)

	pages := (dataPtr+uint32(len(reply)))/pageSize + 1

	const (
		typeTrace = iota
		typeGetter
		typeTranslate
	)

	var funcBase uint32
	if opts.Trace {
		funcBase = 1
	}

	types := vec(
		funcType([]byte{valI32}, nil),
		funcType(nil, []byte{valI32}),
		funcType([]byte{valI32}, []byte{valI32}),
	)

	var imports []byte
	if opts.Trace {
		imports = vec(concat(name(abi.ImportModule), name(abi.TraceImport), []byte{kindFunc}, uleb(typeTrace)))
	}

	functions := vec(uleb(typeGetter), uleb(typeGetter), uleb(typeGetter), uleb(typeTranslate))

	memory := vec(concat([]byte{0x00}, uleb(pages)))

	var exportEntries [][]byte
	addExport := func(n string, kind byte, idx uint32) {
		if n == opts.Omit {
			return
		}
		exportEntries = append(exportEntries, concat(name(n), []byte{kind}, uleb(idx)))
	}
	addExport(abi.Memory, kindMemory, 0)
	addExport(abi.BufferSize, kindFunc, funcBase)
	addExport(abi.QueryBuffer, kindFunc, funcBase+1)
	addExport(abi.ReplyBuffer, kindFunc, funcBase+2)
	addExport(abi.Translate, kindFunc, funcBase+3)
	exports := vec(exportEntries...)

	code := vec(
		body(i32Const(layout.Capacity)),
		body(i32Const(layout.QueryPtr)),
		body(i32Const(layout.ReplyPtr)),
		body(translateBody(opts, layout, dataPtr, uint32(len(reply)))),
	)

	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)
	out = append(out, section(secType, types)...)
	if imports != nil {
		out = append(out, section(secImport, imports)...)
	}
	out = append(out, section(secFunction, functions)...)
	out = append(out, section(secMemory, memory)...)
	out = append(out, section(secExport, exports)...)
	out = append(out, section(secCode, code)...)
	if opts.Mode == Fixed && len(reply) > 0 {
		segment := concat([]byte{0x00}, i32Const(dataPtr), []byte{opEnd}, uleb(uint32(len(reply))), reply)
		out = append(out, section(secData, vec(segment))...)
	}
	return out
}

func translateBody(opts Options, layout Layout, dataPtr, replyLen uint32) []byte {
	var b []byte
	if opts.Trace {
		b = append(b, opLocalGet, 0x00, opCall, 0x00)
	}
	switch opts.Mode {
	case Echo:
		b = append(b, i32Const(layout.ReplyPtr)...)
		b = append(b, i32Const(layout.QueryPtr)...)
		b = append(b, opLocalGet, 0x00)
		b = append(b, memoryCopy...)
		b = append(b, opLocalGet, 0x00)
	case Fixed:
		b = append(b, i32Const(layout.ReplyPtr)...)
		b = append(b, i32Const(dataPtr)...)
		b = append(b, i32Const(replyLen)...)
		b = append(b, memoryCopy...)
		b = append(b, i32Const(replyLen)...)
	case Overflow:
		b = append(b, i32Const(layout.Capacity+1)...)
	case Trap:
		b = append(b, opUnreachable)
	default:
		b = append(b, i32Const(0)...)
	}
	return b
}

// Source serves a generated module as a wasm.ModuleSource.
type Source struct {
	ModuleName string
	Options    Options
}

// NewSource returns a source named after the mode, e.g. "builtin:echo".
// Options that change the binary add a content hash to the name, e.g.
// "builtin:echo@9c1f...", since compiled modules are cached by name.
func NewSource(opts Options) *Source {
	return &Source{ModuleName: ModuleName(opts), Options: opts}
}

// ModuleName returns the name NewSource gives the module built from opts.
func ModuleName(opts Options) string {
	name := "builtin:" + opts.Mode.String()
	data := Build(opts)
	if bytes.Equal(data, Build(Options{Mode: opts.Mode})) {
		return name
	}
	return fmt.Sprintf("%s@%016x", name, xxhash.Sum64(data))
}

// Name returns the module name.
func (s *Source) Name() string {
	return s.ModuleName
}

// Bytes assembles the module.
func (s *Source) Bytes(context.Context) ([]byte, error) {
	return Build(s.Options), nil
}
