package wasm

import (
	"errors"
	"fmt"
)

// FetchError occurs when module bytes cannot be obtained from a source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch Wasm module '%s': %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// MemoryNotFoundError occurs when the guest does not export its linear memory.
type MemoryNotFoundError struct {
	ModuleName string
	MemoryName string
}

func (e *MemoryNotFoundError) Error() string {
	return fmt.Sprintf("memory '%s' not exported by module '%s'",
		e.MemoryName, e.ModuleName)
}

// MemoryAccessError occurs when memory operations fail
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access failed (op=%s, addr=%d, len=%d): %v",
		e.Operation, e.Address, e.Length, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

// CallError occurs when an exported guest function traps or returns
// an unexpected number of results.
type CallError struct {
	FunctionName string
	Err          error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call to '%s' failed: %v", e.FunctionName, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// HostFunctionError occurs when host function registration fails
type HostFunctionError struct {
	FunctionName string
	Err          error
}

func (e *HostFunctionError) Error() string {
	return fmt.Sprintf("host function '%s' failed: %v", e.FunctionName, e.Err)
}

func (e *HostFunctionError) Unwrap() error {
	return e.Err
}

// ErrOutOfRange is wrapped by MemoryAccessError for bounds failures.
var ErrOutOfRange = errors.New("out of range of linear memory")
