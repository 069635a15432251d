package wasm

// Default export names of the IME engine IPC interface.
const (
	// ExportMemory is the guest's linear memory holding both IPC buffers.
	ExportMemory = "memory"

	// ExportBufferSize returns the capacity in bytes of each IPC buffer.
	// Signature: wasm_buffer_size() -> i32
	ExportBufferSize = "wasm_buffer_size"

	// ExportQueryBuffer returns the offset of the query buffer.
	// Signature: wasm_query_buf_ptr() -> i32
	ExportQueryBuffer = "wasm_query_buf_ptr"

	// ExportReplyBuffer returns the offset of the reply buffer.
	// Signature: wasm_reply_buf_ptr() -> i32
	ExportReplyBuffer = "wasm_reply_buf_ptr"

	// ExportTranslate consumes n query bytes and returns the reply length.
	// Signature: translate_zh_hans(n: i32) -> i32
	ExportTranslate = "translate_zh_hans"
)

// ABI names the guest exports and host imports used for message exchange.
type ABI struct {
	Memory      string `mapstructure:"memory" yaml:"memory"`
	BufferSize  string `mapstructure:"buffer_size" yaml:"buffer_size"`
	QueryBuffer string `mapstructure:"query_buffer" yaml:"query_buffer"`
	ReplyBuffer string `mapstructure:"reply_buffer" yaml:"reply_buffer"`
	Translate   string `mapstructure:"translate" yaml:"translate"`

	ImportModule string `mapstructure:"import_module" yaml:"import_module"`
	TraceImport  string `mapstructure:"trace_import" yaml:"trace_import"`
}

// DefaultABI returns the export and import names of the IME engine.
func DefaultABI() ABI {
	return ABI{
		Memory:       ExportMemory,
		BufferSize:   ExportBufferSize,
		QueryBuffer:  ExportQueryBuffer,
		ReplyBuffer:  ExportReplyBuffer,
		Translate:    ExportTranslate,
		ImportModule: DefaultImportModule,
		TraceImport:  DefaultTraceImport,
	}
}

// WithDefaults fills empty names from DefaultABI.
func (a ABI) WithDefaults() ABI {
	d := DefaultABI()
	if a.Memory == "" {
		a.Memory = d.Memory
	}
	if a.BufferSize == "" {
		a.BufferSize = d.BufferSize
	}
	if a.QueryBuffer == "" {
		a.QueryBuffer = d.QueryBuffer
	}
	if a.ReplyBuffer == "" {
		a.ReplyBuffer = d.ReplyBuffer
	}
	if a.Translate == "" {
		a.Translate = d.Translate
	}
	if a.ImportModule == "" {
		a.ImportModule = d.ImportModule
	}
	if a.TraceImport == "" {
		a.TraceImport = d.TraceImport
	}
	return a
}

// Functions lists the exported function names in call order.
func (a ABI) Functions() []string {
	return []string{a.BufferSize, a.QueryBuffer, a.ReplyBuffer, a.Translate}
}

// Imports returns the host import names.
func (a ABI) Imports() HostImports {
	return HostImports{Module: a.ImportModule, Trace: a.TraceImport}
}
