// Package log is the guest's notification bridge to the host: a Printer that
// hands one UTF-8 message at a time to the imported env.print function, and
// a slog.Handler that renders every record as exactly one such message.
//
// Delivery is one-way and synchronous. A Print returns after the host has
// received the message, so messages arrive in the order they were issued.
package log

import (
	"fmt"
	"io"
	"sync"
)

// Printer transmits one message to the host. It cannot fail from the
// caller's point of view.
type Printer interface {
	Print(message string)
}

// PrinterFunc adapts a function to Printer.
type PrinterFunc func(message string)

// Print calls f.
func (f PrinterFunc) Print(message string) {
	f(message)
}

// writerPrinter writes each message as a line to w.
type writerPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

// WriterPrinter returns a Printer that writes each message on its own line.
// Write errors are dropped, as a failed host transmission would be.
func WriterPrinter(w io.Writer) Printer {
	return &writerPrinter{w: w}
}

func (p *writerPrinter) Print(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, message)
}
