//go:build !wasip1

package log

import "os"

// HostPrinter returns a stdout Printer for builds that do not run inside a
// wasm host, such as tests and in-process guests.
func HostPrinter() Printer {
	return WriterPrinter(os.Stdout)
}
