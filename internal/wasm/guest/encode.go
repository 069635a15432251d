package guest

// Section ids.
const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secExport   = 7
	secCode     = 10
	secData     = 11
)

const (
	valI32 = 0x7f

	kindFunc   = 0x00
	kindMemory = 0x02

	opUnreachable = 0x00
	opEnd         = 0x0b
	opCall        = 0x10
	opLocalGet    = 0x20
	opI32Const    = 0x41
)

// memory.copy from memory 0 to memory 0.
var memoryCopy = []byte{0xfc, 0x0a, 0x00, 0x00}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

func i32Const(v uint32) []byte {
	return append([]byte{opI32Const}, sleb(int32(v))...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func vec(items ...[]byte) []byte {
	return append(uleb(uint32(len(items))), concat(items...)...)
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func funcType(params, results []byte) []byte {
	return concat([]byte{0x60}, uleb(uint32(len(params))), params, uleb(uint32(len(results))), results)
}

// body wraps instructions into a code entry without locals.
func body(instrs []byte) []byte {
	fn := concat([]byte{0x00}, instrs, []byte{opEnd})
	return append(uleb(uint32(len(fn))), fn...)
}

func section(id byte, content []byte) []byte {
	return concat([]byte{id}, uleb(uint32(len(content))), content)
}
