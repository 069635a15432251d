//go:build wasip1

package wasm

import "unsafe"

// uint32 is used for pointers and lengths because wasm32 linear memory is
// addressed with 32-bit offsets.

var (
	buffers   Buffers
	translate TranslateFunc = func(query string) string { return query }
)

// Register installs the engine's translate function. Without it the engine
// echoes its input.
func Register(fn TranslateFunc) {
	translate = fn
}

// Trace forwards a diagnostic code to the host log.
func Trace(code int32) {
	jsLogTrace(code)
}

//go:wasmimport js js_log_trace
func jsLogTrace(code int32)

//go:wasmexport wasm_buffer_size
func wasmBufferSize() uint32 {
	return BufferSize
}

//go:wasmexport wasm_query_buf_ptr
func wasmQueryBufPtr() uint32 {
	return uint32(uintptr(unsafe.Pointer(&buffers.Query[0])))
}

//go:wasmexport wasm_reply_buf_ptr
func wasmReplyBufPtr() uint32 {
	return uint32(uintptr(unsafe.Pointer(&buffers.Reply[0])))
}

//go:wasmexport translate_zh_hans
func translateZhHans(n uint32) uint32 {
	return buffers.Translate(n, translate)
}
