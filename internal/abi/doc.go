// Package abi owns the guest side of the shared linear memory: the byte
// allocator strategies that hand buffers to the host, the (ptr, len) handle
// convention used by every entry point, and the ownership-transfer primitive
// that moves a guest-built buffer across the boundary.
//
// Nothing in this package protects against a host that passes ranges it does
// not own. A handle is only meaningful while the allocation behind it is
// live; using it after Deallocate is the caller's bug and is not detected.
package abi
