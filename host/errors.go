package host

import (
	"errors"
	"fmt"

	"github.com/Santiael/wasm-memory-interface/internal/abi"
	"github.com/Santiael/wasm-memory-interface/internal/fault"
)

// ErrTrapped is wrapped by every error from a trapped instance.
var ErrTrapped = fault.ErrTrapped

// ErrNoMemory is returned when the guest does not export a linear memory.
var ErrNoMemory = errors.New("guest exports no memory")

// ErrUnsupportedType is returned by Allocator.SetInMemory for values it
// cannot encode.
var ErrUnsupportedType = errors.New("unsupported value type")

// TrapError reports that the guest stopped while running an export, or that
// it had already stopped before the call.
type TrapError struct {
	Export string
	Err    error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("guest trapped in %s: %v", e.Export, e.Err)
}

func (e *TrapError) Unwrap() []error {
	return []error{ErrTrapped, e.Err}
}

// ExportError reports a missing export or one whose signature does not
// match the boundary ABI.
type ExportError struct {
	Name   string
	Reason string
}

func (e *ExportError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("export %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("export %q not found", e.Name)
}

// MemoryError reports a host access outside the guest's linear memory.
type MemoryError struct {
	Op  string
	Ptr uint32
	Len uint32
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("%s %d bytes at %#x: %v", e.Op, e.Len, e.Ptr, abi.ErrOutOfBounds)
}

func (e *MemoryError) Unwrap() error {
	return abi.ErrOutOfBounds
}
