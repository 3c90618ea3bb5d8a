// Package host drives a guest unit from the controlling process.
//
// An Instance wraps one guest and exposes its entry points as typed calls:
// Allocate, Deallocate, ReadBytesFromMemory, ReadNumberFromMemory and
// SetHelloOnMemory, plus direct reads and writes of the shared linear
// memory. Instances come from an Executor, which runs a compiled module
// under wazero, or from NewLocal, which runs the same guest logic in-process
// over a Go byte slice.
//
// The host is the party that honours the ownership contract: every buffer it
// obtains from Allocate or SetHelloOnMemory must eventually be passed back to
// Deallocate with its original size. Allocator and Instance.Hello do that
// bookkeeping for the common cases.
//
// A call that fails inside the guest leaves the instance Trapped. Every later
// call returns a *TrapError wrapping ErrTrapped; the guest must be reloaded.
package host
