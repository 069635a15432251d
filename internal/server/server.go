// Package server serves the chat simulator over WebSocket and publishes the
// loaded engine module so other hosts can fetch it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/woxQAQ/hanzi-ime/internal/chat"
	"github.com/woxQAQ/hanzi-ime/internal/config"
	"github.com/woxQAQ/hanzi-ime/internal/ipc"
	"github.com/woxQAQ/hanzi-ime/pkg/protocol"
	"go.uber.org/zap"
)

const wasmContentType = "application/wasm"

// Server shares one engine handle between all connections. The handle
// serializes exchanges.
type Server struct {
	handle    *ipc.Handle
	messenger *ipc.Messenger
	cfg       config.ServerConfig
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// New creates a server for a ready handle.
func New(h *ipc.Handle, messenger *ipc.Messenger, cfg config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		handle:    h,
		messenger: messenger,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With(zap.String("component", "chat-server")),
	}
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/engine.wasm", s.handleModule)
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves on cfg.Listen until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Chat server listening", zap.String("listen", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Chat server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"ready":  s.handle.Ready(),
	})
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	data := s.handle.ModuleBytes()
	if data == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", wasmContentType)
	_, _ = w.Write(data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}

	logger := s.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Info("Chat client connected")

	session := chat.NewSession(chat.EngineTranslator(s.messenger, s.handle), logger)
	if err := conn.WriteJSON(entryFrame(session.Welcome())); err != nil {
		return
	}

	ctx := r.Context()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Chat client read failed", zap.Error(err))
			}
			logger.Info("Chat client disconnected")
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		reply, ok := s.dispatch(ctx, session, data)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn("Chat client write failed", zap.Error(err))
			return
		}
	}
}

// dispatch runs one client frame. ok is false when nothing is sent back.
func (s *Server) dispatch(ctx context.Context, session *chat.Session, data []byte) (protocol.ServerFrame, bool) {
	var frame protocol.ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return protocol.ServerFrame{Type: protocol.FrameError, Error: "malformed frame: " + err.Error()}, true
	}

	switch frame.Type {
	case protocol.FrameSuggest:
		text, err := session.Suggest(ctx, frame.Text)
		if err != nil {
			return protocol.ServerFrame{Type: protocol.FrameError, Error: err.Error()}, true
		}
		return protocol.ServerFrame{Type: protocol.FrameSuggestion, Text: text}, true

	case protocol.FrameSend:
		res, err := session.Submit(ctx, frame.Text)
		switch {
		case err != nil:
			return protocol.ServerFrame{Type: protocol.FrameError, Error: err.Error()}, true
		case res.Cleared:
			return protocol.ServerFrame{Type: protocol.FrameClear}, true
		case res.Entry != nil:
			return entryFrame(*res.Entry), true
		default:
			return protocol.ServerFrame{}, false
		}

	default:
		return protocol.ServerFrame{Type: protocol.FrameError, Error: "unknown frame type '" + frame.Type + "'"}, true
	}
}

func entryFrame(e chat.Entry) protocol.ServerFrame {
	return protocol.ServerFrame{
		Type:  protocol.FrameEntry,
		Entry: &protocol.Entry{Kind: string(e.Kind), Text: e.Text},
	}
}
