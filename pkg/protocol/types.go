package protocol

// Frames exchanged with a chat client over WebSocket. Every frame is a JSON
// text message with a "type" field.

// Client frame types.
const (
	FrameSuggest = "suggest"
	FrameSend    = "send"
)

// Server frame types.
const (
	FrameSuggestion = "suggestion"
	FrameEntry      = "entry"
	FrameClear      = "clear"
	FrameError      = "error"
)

// ClientFrame is a message from the client.
type ClientFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Entry is one chat log item as sent to the client.
type Entry struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// ServerFrame is a message to the client.
type ServerFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Entry *Entry `json:"entry,omitempty"`
	Error string `json:"error,omitempty"`
}
