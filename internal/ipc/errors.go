package ipc

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by Exchange when the handle has not finished
// loading or has been closed. No buffer is touched in that case.
var ErrNotReady = errors.New("engine instance is not ready")

// Load stages reported by LoadError.
const (
	StageFetch       = "fetch"
	StageCompile     = "compile"
	StageInstantiate = "instantiate"
	StageBind        = "bind"
)

// LoadError occurs when an engine module cannot be made ready.
type LoadError struct {
	Source string
	Stage  string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load engine '%s' (stage: %s): %v", e.Source, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ReplyOverflowError occurs when the guest reports more reply bytes than
// the reply buffer can hold.
type ReplyOverflowError struct {
	Count    uint32
	Capacity uint32
}

func (e *ReplyOverflowError) Error() string {
	return fmt.Sprintf("reply length %d exceeds buffer capacity %d", e.Count, e.Capacity)
}
