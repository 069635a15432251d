package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Memory provides bounds-checked operations on a guest's linear memory.
//
// The guest owns the memory; the host only reads and writes regions the
// guest has advertised. wazero's Read returns a view that is invalidated
// when the guest grows its memory, so ReadBytes copies.
type Memory struct {
	mem api.Memory
}

// NewMemory creates a memory helper.
func NewMemory(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// CheckRange reports whether [ptr, ptr+length) lies inside linear memory.
func (m *Memory) CheckRange(op string, ptr, length uint32) error {
	end := uint64(ptr) + uint64(length)
	if end > uint64(m.mem.Size()) {
		return &MemoryAccessError{
			Operation: op,
			Address:   ptr,
			Length:    length,
			Err:       ErrOutOfRange,
		}
	}
	return nil
}

// ReadBytes copies length bytes starting at ptr out of Wasm memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, error) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: ptr, Length: length, Err: ErrOutOfRange}
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// WriteBytes writes data into Wasm memory at ptr.
func (m *Memory) WriteBytes(ptr uint32, data []byte) error {
	if !m.mem.Write(ptr, data) {
		return &MemoryAccessError{Operation: "write", Address: ptr, Length: uint32(len(data)), Err: ErrOutOfRange}
	}
	return nil
}
