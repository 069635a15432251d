// Package chat implements the chat simulator around an IME engine: a live
// suggestion for the text being composed, a log of sent messages and a few
// slash commands.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/woxQAQ/hanzi-ime/internal/ipc"
	"go.uber.org/zap"
)

// Slash commands. They match only when the input is exactly the command.
const (
	CommandHelp  = "/help"
	CommandAbout = "/about"
	CommandClear = "/clear"
)

// PendingCommand is the suggestion shown while a slash command is typed.
const PendingCommand = "[waiting for return or enter]"

// EntryKind tells how a log entry should be rendered.
type EntryKind string

const (
	KindMessage EntryKind = "message"
	KindWelcome EntryKind = "welcome"
	KindHelp    EntryKind = "help"
	KindAbout   EntryKind = "about"
)

// Entry is one item of the chat log.
type Entry struct {
	Kind EntryKind `json:"kind"`
	Text string    `json:"text"`
}

// TranslateFunc converts typed input into the engine reply.
type TranslateFunc func(ctx context.Context, input string) (string, error)

// EngineTranslator exchanges input with a loaded engine handle.
func EngineTranslator(m *ipc.Messenger, h *ipc.Handle) TranslateFunc {
	return func(ctx context.Context, input string) (string, error) {
		return m.Exchange(ctx, h, input)
	}
}

// Result describes what Submit did to the log.
type Result struct {
	// Entry is the appended entry, nil when nothing was appended.
	Entry *Entry
	// Cleared is set when the log was cleared.
	Cleared bool
}

// Session is one chat window.
type Session struct {
	translate TranslateFunc
	logger    *zap.Logger

	mu  sync.Mutex
	log []Entry
}

// NewSession creates a session with an empty log.
func NewSession(translate TranslateFunc, logger *zap.Logger) *Session {
	return &Session{
		translate: translate,
		logger:    logger.With(zap.String("component", "chat-session")),
	}
}

// IsCommand reports whether input is one of the slash commands.
func IsCommand(input string) bool {
	switch input {
	case CommandHelp, CommandAbout, CommandClear:
		return true
	}
	return false
}

// Suggest returns the suggestion for the text being composed.
func (s *Session) Suggest(ctx context.Context, input string) (string, error) {
	if IsCommand(input) {
		return PendingCommand, nil
	}
	return s.translate(ctx, input)
}

// Submit sends input. Blank input is ignored. The engine sees every
// non-blank input, commands included; a failed exchange only aborts
// plain messages.
func (s *Session) Submit(ctx context.Context, input string) (Result, error) {
	if strings.TrimSpace(input) == "" {
		return Result{}, nil
	}

	reply, err := s.translate(ctx, input)
	if err != nil {
		if !IsCommand(input) {
			return Result{}, err
		}
		s.logger.Warn("Engine exchange failed for command", zap.String("command", input), zap.Error(err))
	}

	switch input {
	case CommandHelp:
		return s.append(Entry{Kind: KindHelp, Text: HelpText}), nil
	case CommandAbout:
		return s.append(Entry{Kind: KindAbout, Text: AboutText}), nil
	case CommandClear:
		s.Clear()
		return Result{Cleared: true}, nil
	}

	// No match for the input keeps what was typed.
	if reply == "" {
		reply = strings.TrimSpace(input)
	}
	return s.append(Entry{Kind: KindMessage, Text: reply}), nil
}

// Welcome appends the greeting shown when the engine becomes ready.
func (s *Session) Welcome() Entry {
	return *s.append(Entry{Kind: KindWelcome, Text: WelcomeText}).Entry
}

// Entries returns a copy of the log.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.log))
	copy(out, s.log)
	return out
}

// Clear empties the log.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

func (s *Session) append(e Entry) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, e)
	return Result{Entry: &e}
}
