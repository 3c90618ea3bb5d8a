// Command guest is the guest unit. Build it as a wasip1 reactor:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o guest.wasm ./cmd/guest
//
// Add -tags arena to back allocate/deallocate with a fixed arena instead of
// pinned heap slices.
//
// Exports: allocate, deallocate, read_bytes_from_memory,
// read_number_from_memory, set_hello_on_memory. Imports: env.print.
package main

func main() {}
