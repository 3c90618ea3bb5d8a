// Package guest implements the guest unit's exported entry points on top of
// a byte allocator, a view of linear memory, and the host notification
// bridge.
//
// Ownership at the boundary:
//
//   - Allocate hands a fresh buffer to the host. The host owns it until it
//     calls Deallocate with the same address and size.
//   - ReadBytesFromMemory and ReadNumberFromMemory borrow a host-owned range
//     for the duration of the call and keep no reference to it.
//   - SetHelloOnMemory builds a payload and a descriptor inside the guest and
//     transfers both to the host. The guest keeps no reference to either; the
//     host frees them with Deallocate.
//
// None of this is checked at run time. A host that passes a range it does not
// own, or frees with the wrong size, gets undefined behaviour.
package guest
