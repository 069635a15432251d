// Package wasm is the guest side of the engine ABI for IME engines written
// in Go. Build an engine with
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o engine.wasm
//
// and call Register from an init function.
package wasm

import "unicode/utf8"

// BufferSize is the capacity of the query and reply buffers in bytes.
const BufferSize = 150

// TranslateFunc turns a query into the reply shown to the user.
type TranslateFunc func(query string) string

// Buffers is the pair of shared buffers the host reads and writes.
type Buffers struct {
	Query [BufferSize]byte
	Reply [BufferSize]byte
}

// Translate runs fn on the first n query bytes and stores the reply. A reply
// longer than BufferSize is cut at the last whole rune that fits. It returns
// the stored reply length.
func (b *Buffers) Translate(n uint32, fn TranslateFunc) uint32 {
	if n > BufferSize {
		n = BufferSize
	}
	reply := truncate(fn(string(b.Query[:n])), BufferSize)
	return uint32(copy(b.Reply[:], reply))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
