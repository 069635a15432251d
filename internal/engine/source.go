package engine

import (
	"net/http"
	"strings"
	"time"

	"github.com/woxQAQ/hanzi-ime/internal/wasm"
	"github.com/woxQAQ/hanzi-ime/internal/wasm/guest"
	"go.uber.org/zap"
)

// BuiltinPrefix selects a generated guest, e.g. builtin:echo.
const BuiltinPrefix = "builtin:"

// SourceOptions tune how a source string is resolved.
type SourceOptions struct {
	FetchMode      wasm.FetchMode
	FetchTimeout   time.Duration
	MaxModuleBytes int64
	ABI            wasm.ABI
	Logger         *zap.Logger
}

// ResolveSource maps a source string to a module source: http:// and
// https:// URLs are fetched, builtin:echo and builtin:empty are generated
// in process, and anything else is a file path.
func ResolveSource(source string, opts SourceOptions) (wasm.ModuleSource, error) {
	switch {
	case source == "":
		return nil, &InvalidSourceError{Source: source, Reason: "empty"}

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		mode := opts.FetchMode
		switch mode {
		case "", wasm.FetchStreaming, wasm.FetchBuffered:
		default:
			return nil, &InvalidSourceError{Source: source, Reason: "unknown fetch mode " + string(mode)}
		}
		return &wasm.HTTPModuleSource{
			URL:      source,
			Mode:     mode,
			Client:   &http.Client{Timeout: opts.FetchTimeout},
			MaxBytes: opts.MaxModuleBytes,
			Logger:   opts.Logger,
		}, nil

	case strings.HasPrefix(source, BuiltinPrefix):
		var mode guest.Mode
		switch strings.TrimPrefix(source, BuiltinPrefix) {
		case "echo":
			mode = guest.Echo
		case "empty":
			mode = guest.Empty
		default:
			return nil, &InvalidSourceError{Source: source, Reason: "unknown builtin engine"}
		}
		return guest.NewSource(guest.Options{Mode: mode, Trace: true, ABI: opts.ABI}), nil

	default:
		return &wasm.FileModuleSource{Path: source}, nil
	}
}
