package ipc

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
)

// Messenger exchanges one message at a time with a ready Handle.
type Messenger struct {
	logger *zap.Logger
}

// NewMessenger creates a messenger.
func NewMessenger(logger *zap.Logger) *Messenger {
	return &Messenger{
		logger: logger.With(zap.String("component", "ipc-messenger")),
	}
}

// Exchange sends message to the engine behind h and returns its reply.
//
// The UTF-8 encoding of message is cut to the buffer capacity without
// reporting it, which may split a multi-byte character. translate receives
// the number of bytes actually written. A zero reply length yields "" and
// the reply buffer is not read. Ill-formed UTF-8 in the reply decodes to
// U+FFFD.
//
// Calls on the same handle are serialized.
func (m *Messenger) Exchange(ctx context.Context, h *Handle, message string) (string, error) {
	if h == nil || !h.Ready() {
		return "", ErrNotReady
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Close may have won the lock.
	if !h.Ready() {
		return "", ErrNotReady
	}

	payload, err := unicode.UTF8.NewEncoder().Bytes([]byte(message))
	if err != nil {
		return "", err
	}

	b := h.bindings
	n := uint32(len(payload))
	if n > b.Capacity {
		m.logger.Debug("Query truncated to buffer capacity",
			zap.Int("encoded_bytes", len(payload)),
			zap.Uint32("capacity", b.Capacity),
		)
		n = b.Capacity
	}

	if err := h.mem.WriteBytes(b.QueryPtr, payload[:n]); err != nil {
		return "", err
	}

	replyLen, err := h.translate(ctx, n)
	if err != nil {
		return "", err
	}
	if replyLen == 0 {
		return "", nil
	}
	if replyLen > b.Capacity {
		return "", &ReplyOverflowError{Count: replyLen, Capacity: b.Capacity}
	}

	raw, err := h.mem.ReadBytes(b.ReplyPtr, replyLen)
	if err != nil {
		return "", err
	}

	reply, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(reply), nil
}
