//go:build wasip1

// Command echo-engine is a minimal engine that replies with its input.
package main

import (
	"strings"

	"github.com/woxQAQ/hanzi-ime/api/wasm"
)

func init() {
	wasm.Register(func(query string) string {
		wasm.Trace(int32(len(query)))
		return strings.TrimSpace(query)
	})
}

func main() {}
